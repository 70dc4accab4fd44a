// Package stats computes the descriptive statistics, braking detection and
// fuel efficiency shown for a selected vehicle/profile pair.
package stats

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"vehicle-dynamics-dashboard/internal/models"
)

const (
	// DefaultBrakingThreshold marks a sample as braking when its
	// acceleration is at or below it (m/s²).
	DefaultBrakingThreshold = -2.0

	// MinMovingSpeed is the speed (km/h) below which fuel efficiency is
	// reported as the idle fuel rate.
	MinMovingSpeed = 0.1
)

// Filter returns the samples of ds belonging to the given pair, in their
// original order.
func Filter(ds *models.Dataset, vt models.VehicleType, pt models.ProfileType) ([]models.Sample, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no dataset loaded", models.ErrEmptySelection)
	}

	var out []models.Sample
	for _, s := range ds.Samples {
		if s.VehicleType == vt && s.ProfileType == pt {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no samples for %s/%s", models.ErrEmptySelection, vt, pt)
	}
	return out, nil
}

// Describe summarises values using population definitions. Median and
// quartiles interpolate linearly between the closest ranks.
func Describe(values []float64) (models.ChannelStats, error) {
	if len(values) == 0 {
		return models.ChannelStats{}, fmt.Errorf("%w: no values to describe", models.ErrEmptyDataset)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)
	if len(sorted) == 1 || math.IsNaN(std) {
		std = 0
	}
	lo, hi := floats.Min(sorted), floats.Max(sorted)

	return models.ChannelStats{
		Count:  len(sorted),
		Mean:   mean,
		Median: quantile(sorted, 0.5),
		StdDev: std,
		Min:    lo,
		Max:    hi,
		Range:  hi - lo,
		Q1:     quantile(sorted, 0.25),
		Q3:     quantile(sorted, 0.75),
	}, nil
}

// quantile expects sorted input.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	i := int(math.Floor(h))
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-float64(i))*(sorted[i+1]-sorted[i])
}

// Summarize builds the per-selection summary: speed statistics, the braking
// mask and the fuel-efficiency series.
func Summarize(samples []models.Sample, threshold float64) (*models.StatisticsSummary, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples to summarize", models.ErrEmptyDataset)
	}

	speed, err := Describe(channel(samples, speedOf))
	if err != nil {
		return nil, err
	}
	mask := BrakingMask(samples, threshold)

	count := 0
	for _, b := range mask {
		if b {
			count++
		}
	}

	return &models.StatisticsSummary{
		Pair:             samples[0].Pair(),
		Samples:          len(samples),
		Speed:            speed,
		BrakingThreshold: threshold,
		BrakingMask:      mask,
		BrakingCount:     count,
		FuelEfficiency:   FuelEfficiency(samples),
	}, nil
}

// BrakingMask flags samples whose acceleration is at or below threshold.
func BrakingMask(samples []models.Sample, threshold float64) []bool {
	mask := make([]bool, len(samples))
	for i, s := range samples {
		mask[i] = s.Acceleration <= threshold
	}
	return mask
}

// FuelEfficiency returns L/100km per sample. Samples slower than
// MinMovingSpeed report the idle fuel rate instead of dividing by ~0.
func FuelEfficiency(samples []models.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		if s.Speed < MinMovingSpeed {
			out[i] = models.IdleFuelRate
			continue
		}
		out[i] = s.FuelRate / s.Speed * 100
	}
	return out
}

// Channels holds statistics for every numeric channel of a selection
type Channels struct {
	Speed          models.ChannelStats `json:"speed"`
	Acceleration   models.ChannelStats `json:"acceleration"`
	FuelRate       models.ChannelStats `json:"fuel_rate"`
	FuelEfficiency models.ChannelStats `json:"fuel_efficiency"`
}

// SummarizeAll describes every numeric channel of samples.
func SummarizeAll(samples []models.Sample) (*Channels, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples to summarize", models.ErrEmptyDataset)
	}

	var (
		out Channels
		err error
	)
	if out.Speed, err = Describe(channel(samples, speedOf)); err != nil {
		return nil, err
	}
	if out.Acceleration, err = Describe(channel(samples, accelOf)); err != nil {
		return nil, err
	}
	if out.FuelRate, err = Describe(channel(samples, fuelOf)); err != nil {
		return nil, err
	}
	if out.FuelEfficiency, err = Describe(FuelEfficiency(samples)); err != nil {
		return nil, err
	}
	return &out, nil
}

// BrakingEvents groups consecutive braking samples into events.
func BrakingEvents(samples []models.Sample, threshold float64) []models.BrakingEvent {
	var (
		events []models.BrakingEvent
		cur    *models.BrakingEvent
	)
	for _, s := range samples {
		if s.Acceleration > threshold {
			cur = nil
			continue
		}
		if cur == nil {
			events = append(events, models.BrakingEvent{
				Start:        s.Timestamp,
				End:          s.Timestamp,
				PeakDecel:    s.Acceleration,
				SpeedAtStart: s.Speed,
			})
			cur = &events[len(events)-1]
		}
		cur.End = s.Timestamp
		cur.Samples++
		cur.PeakDecel = min(cur.PeakDecel, s.Acceleration)
	}
	return events
}

func speedOf(s models.Sample) float64 { return s.Speed }
func accelOf(s models.Sample) float64 { return s.Acceleration }
func fuelOf(s models.Sample) float64  { return s.FuelRate }

func channel(samples []models.Sample, f func(models.Sample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = f(s)
	}
	return out
}
