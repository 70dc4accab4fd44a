package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VehicleType determines the performance envelope of a test vehicle
type VehicleType string

const (
	Sedan  VehicleType = "sedan"
	SUV    VehicleType = "SUV"
	Sports VehicleType = "sports"
)

// ProfileType determines the driving behaviour pattern of a test run
type ProfileType string

const (
	Urban   ProfileType = "urban"
	Highway ProfileType = "highway"
	Sport   ProfileType = "sport"
)

// VehicleTypes lists every supported vehicle type in display order.
var VehicleTypes = []VehicleType{Sedan, SUV, Sports}

// ProfileTypes lists every supported profile type in display order.
var ProfileTypes = []ProfileType{Urban, Highway, Sport}

// ParseVehicleType matches s case-insensitively against the known vehicle
// types and returns the canonical spelling.
func ParseVehicleType(s string) (VehicleType, error) {
	v := strings.TrimSpace(s)
	for _, vt := range VehicleTypes {
		if strings.EqualFold(v, string(vt)) {
			return vt, nil
		}
	}
	return "", fmt.Errorf("unknown vehicle type %q (want sedan, SUV or sports)", s)
}

// ParseProfileType matches s case-insensitively against the known profiles.
func ParseProfileType(s string) (ProfileType, error) {
	v := strings.TrimSpace(s)
	for _, pt := range ProfileTypes {
		if strings.EqualFold(v, string(pt)) {
			return pt, nil
		}
	}
	return "", fmt.Errorf("unknown profile type %q (want urban, highway or sport)", s)
}

// UnmarshalJSON accepts any casing of a known vehicle type.
func (v *VehicleType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	vt, err := ParseVehicleType(s)
	if err != nil {
		return err
	}
	*v = vt
	return nil
}

// UnmarshalJSON accepts any casing of a known profile type.
func (p *ProfileType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	pt, err := ParseProfileType(s)
	if err != nil {
		return err
	}
	*p = pt
	return nil
}

// Pair is a (vehicle type, profile type) combination
type Pair struct {
	Vehicle VehicleType `json:"vehicle_type"`
	Profile ProfileType `json:"profile_type"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%s/%s", p.Vehicle, p.Profile)
}

// Less orders pairs by vehicle, then profile.
func (p Pair) Less(o Pair) bool {
	if p.Vehicle != o.Vehicle {
		return p.Vehicle < o.Vehicle
	}
	return p.Profile < o.Profile
}

// VehicleProfile holds the synthesis parameters for one pair. Values are
// built once by the catalog and never mutated.
type VehicleProfile struct {
	Pair

	MaxSpeed             float64 `json:"max_speed"`        // km/h
	MaxAcceleration      float64 `json:"max_acceleration"` // m/s², magnitude
	MaxDeceleration      float64 `json:"max_deceleration"` // m/s², magnitude
	CruiseSpeedTarget    float64 `json:"cruise_speed_target"`
	StopFrequency        float64 `json:"stop_frequency"`         // stops per minute
	BaseFuelRate         float64 `json:"base_fuel_rate"`         // L/h
	FuelSpeedCoefficient float64 `json:"fuel_speed_coefficient"` // L/h per km/h
	FuelAccelPenalty     float64 `json:"fuel_accel_penalty"`     // L/h per m/s²

	// Segment shaping
	CruiseMinS    int     `json:"cruise_min_s"`
	CruiseMaxS    int     `json:"cruise_max_s"`
	TransitionMax int     `json:"transition_max_s"`
	DwellMinS     int     `json:"dwell_min_s"`
	DwellMaxS     int     `json:"dwell_max_s"`
	CruiseNoise   float64 `json:"cruise_noise"` // km/h, std-dev
	TargetSwing   float64 `json:"target_swing"` // fraction of cruise target
}

// StopIntervalSeconds is the mean time between stops, or 0 when the
// profile never stops.
func (p VehicleProfile) StopIntervalSeconds() float64 {
	if p.StopFrequency <= 0 {
		return 0
	}
	return 60 / p.StopFrequency
}
