package models

import (
	"fmt"
	"time"
)

// Sampling constants shared by the synthesizer, parser and statistics.
const (
	SampleStepSeconds = 1
	IdleFuelRate      = 0.5 // L/h, floor for any reported fuel rate
	KmhPerMps         = 3.6
)

// Sample is one 1 Hz reading of a test drive
type Sample struct {
	Timestamp    int64       `json:"timestamp"`    // seconds from run start
	Speed        float64     `json:"speed"`        // km/h
	Acceleration float64     `json:"acceleration"` // m/s²
	FuelRate     float64     `json:"fuel_rate"`    // L/h
	VehicleType  VehicleType `json:"vehicle_type"`
	ProfileType  ProfileType `json:"profile_type"`
}

// Pair returns the vehicle/profile combination the sample belongs to.
func (s Sample) Pair() Pair {
	return Pair{Vehicle: s.VehicleType, Profile: s.ProfileType}
}

// Dataset is an ordered set of samples, possibly mixing several pairs when
// loaded from a merged file.
type Dataset struct {
	Source   string    `json:"source,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
	Samples  []Sample  `json:"samples"`
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Samples)
}

// Validate checks that every pair subsequence advances by a fixed,
// strictly positive timestamp step.
func (d *Dataset) Validate() error {
	type cursor struct {
		last int64
		step int64
		seen int
	}
	cursors := make(map[Pair]*cursor)

	for i, s := range d.Samples {
		c, ok := cursors[s.Pair()]
		if !ok {
			cursors[s.Pair()] = &cursor{last: s.Timestamp, seen: 1}
			continue
		}
		step := s.Timestamp - c.last
		if step <= 0 {
			return fmt.Errorf("%w: record %d: timestamp %d does not increase for %s",
				ErrSchema, i+1, s.Timestamp, s.Pair())
		}
		if c.seen > 1 && step != c.step {
			return fmt.Errorf("%w: record %d: timestamp step %d differs from %d for %s",
				ErrSchema, i+1, step, c.step, s.Pair())
		}
		c.step = step
		c.last = s.Timestamp
		c.seen++
	}
	return nil
}

// RunInfo describes a dataset archived in the run database
type RunInfo struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	SampleCount int       `json:"sample_count"`
	Pairs       []Pair    `json:"pairs,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PairCount is the number of archived samples for one pair
type PairCount struct {
	Pair    Pair `json:"pair"`
	Samples int  `json:"samples"`
	Runs    int  `json:"runs"`
}
