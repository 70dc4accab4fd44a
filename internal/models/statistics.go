package models

// ChannelStats provides descriptive statistics for one numeric channel
type ChannelStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Range  float64 `json:"range"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
}

// StatisticsSummary is recomputed for every selection change
type StatisticsSummary struct {
	Pair             Pair         `json:"pair"`
	Samples          int          `json:"samples"`
	Speed            ChannelStats `json:"speed"`
	BrakingThreshold float64      `json:"braking_threshold"`
	BrakingMask      []bool       `json:"braking_mask"`
	BrakingCount     int          `json:"braking_count"`
	FuelEfficiency   []float64    `json:"fuel_efficiency"` // L/100km per sample
}

// BrakingEvent is a contiguous run of braking samples
type BrakingEvent struct {
	Start        int64   `json:"start"`
	End          int64   `json:"end"`
	Samples      int     `json:"samples"`
	PeakDecel    float64 `json:"peak_decel"` // most negative acceleration, m/s²
	SpeedAtStart float64 `json:"speed_at_start"`
}
