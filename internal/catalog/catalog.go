// Package catalog holds the static synthesis parameters for every
// vehicle/profile combination.
package catalog

import (
	"fmt"
	"slices"

	"vehicle-dynamics-dashboard/internal/models"
)

// envelope is the performance limit of a vehicle type
type envelope struct {
	maxSpeed    float64 // km/h
	maxAccel    float64 // m/s²
	maxDecel    float64 // m/s²
	cruiseScale float64
	baseFuel    float64 // L/h
	fuelPerKmh  float64
	fuelPerMps2 float64
}

// behaviour is the driving pattern of a profile type
type behaviour struct {
	cruiseTarget  float64 // km/h before vehicle scaling
	stopFrequency float64 // stops per minute
	accelScale    float64
	brakeScale    float64
	fuelScale     float64
	cruiseMin     int
	cruiseMax     int
	transitionMax int
	dwellMin      int
	dwellMax      int
	noise         float64
	swing         float64
}

var envelopes = map[models.VehicleType]envelope{
	models.Sedan:  {maxSpeed: 180, maxAccel: 3.0, maxDecel: 6.0, cruiseScale: 1.0, baseFuel: 0.8, fuelPerKmh: 0.055, fuelPerMps2: 2.0},
	models.SUV:    {maxSpeed: 160, maxAccel: 2.5, maxDecel: 5.5, cruiseScale: 0.95, baseFuel: 1.2, fuelPerKmh: 0.075, fuelPerMps2: 2.8},
	models.Sports: {maxSpeed: 250, maxAccel: 5.0, maxDecel: 8.5, cruiseScale: 1.15, baseFuel: 1.0, fuelPerKmh: 0.07, fuelPerMps2: 3.5},
}

var behaviours = map[models.ProfileType]behaviour{
	models.Urban: {
		cruiseTarget: 45, stopFrequency: 1.5, accelScale: 0.8, brakeScale: 1.0, fuelScale: 1.1,
		cruiseMin: 10, cruiseMax: 25, transitionMax: 15, dwellMin: 3, dwellMax: 10,
		noise: 1.5, swing: 0.2,
	},
	models.Highway: {
		cruiseTarget: 110, stopFrequency: 0.05, accelScale: 0.6, brakeScale: 0.8, fuelScale: 0.9,
		cruiseMin: 60, cruiseMax: 180, transitionMax: 30, dwellMin: 5, dwellMax: 10,
		noise: 2.0, swing: 0.1,
	},
	models.Sport: {
		cruiseTarget: 140, stopFrequency: 0.4, accelScale: 1.0, brakeScale: 1.0, fuelScale: 1.2,
		cruiseMin: 5, cruiseMax: 15, transitionMax: 10, dwellMin: 2, dwellMax: 5,
		noise: 3.0, swing: 0.35,
	},
}

var profiles = build()

func build() map[models.Pair]models.VehicleProfile {
	out := make(map[models.Pair]models.VehicleProfile, len(envelopes)*len(behaviours))
	for vt, e := range envelopes {
		for pt, b := range behaviours {
			pair := models.Pair{Vehicle: vt, Profile: pt}
			out[pair] = models.VehicleProfile{
				Pair:                 pair,
				MaxSpeed:             e.maxSpeed,
				MaxAcceleration:      e.maxAccel * b.accelScale,
				MaxDeceleration:      e.maxDecel * b.brakeScale,
				CruiseSpeedTarget:    min(b.cruiseTarget*e.cruiseScale, 0.9*e.maxSpeed),
				StopFrequency:        b.stopFrequency,
				BaseFuelRate:         e.baseFuel,
				FuelSpeedCoefficient: e.fuelPerKmh * b.fuelScale,
				FuelAccelPenalty:     e.fuelPerMps2 * b.fuelScale,
				CruiseMinS:           b.cruiseMin,
				CruiseMaxS:           b.cruiseMax,
				TransitionMax:        b.transitionMax,
				DwellMinS:            b.dwellMin,
				DwellMaxS:            b.dwellMax,
				CruiseNoise:          b.noise,
				TargetSwing:          b.swing,
			}
		}
	}
	return out
}

// Lookup returns the parameters for a vehicle/profile combination.
func Lookup(vt models.VehicleType, pt models.ProfileType) (models.VehicleProfile, error) {
	p, ok := profiles[models.Pair{Vehicle: vt, Profile: pt}]
	if !ok {
		return models.VehicleProfile{}, fmt.Errorf("%w: %s/%s", models.ErrUnknownCombination, vt, pt)
	}
	return p, nil
}

// All returns every defined profile ordered by pair.
func All() []models.VehicleProfile {
	out := make([]models.VehicleProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b models.VehicleProfile) int {
		switch {
		case a.Pair.Less(b.Pair):
			return -1
		case b.Pair.Less(a.Pair):
			return 1
		}
		return 0
	})
	return out
}
