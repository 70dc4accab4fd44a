package synth

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"vehicle-dynamics-dashboard/internal/models"
)

const (
	arriveToleranceKmh = 0.5
	cruiseGain         = 0.2
	minEffortFraction  = 0.35
	noiseClampSigma    = 3.0
)

type segmentKind int

const (
	transition segmentKind = iota
	cruise
	dwell
)

type segment struct {
	kind   segmentKind
	target float64 // km/h
	length int     // seconds, upper bound for transitions
}

// generator owns the random state of one run
type generator struct {
	profile  models.VehicleProfile
	src      rand.Source
	rng      *rand.Rand
	duration int64
	used     bool
}

func newGenerator(profile models.VehicleProfile, seed uint64, duration int64) *generator {
	src := newSource(seed)
	return &generator{
		profile:  profile,
		src:      src,
		rng:      rand.New(src),
		duration: duration,
	}
}

// run yields every sample of the run. A second iteration yields nothing.
func (g *generator) run(yield func(models.Sample) bool) {
	if g.used {
		return
	}
	g.used = true

	speed := 0.0
	if !yield(g.sample(0, speed, 0)) {
		return
	}

	plan := newPlanner(g.profile, g.rng)
	t := int64(1)
	for t < g.duration {
		seg := plan.next(speed, t)
		for i := 0; i < seg.length && t < g.duration; i++ {
			next := g.step(seg, speed)
			accel := (next - speed) / models.KmhPerMps
			if !yield(g.sample(t, next, accel)) {
				return
			}
			speed = next
			t++
			if seg.kind == transition && math.Abs(speed-seg.target) <= arriveToleranceKmh {
				break
			}
		}
		plan.finish(seg, speed)
	}
}

func (g *generator) step(seg segment, speed float64) float64 {
	p := g.profile
	var next float64

	switch seg.kind {
	case transition:
		need := (seg.target - speed) / models.KmhPerMps
		var accel float64
		switch {
		case need > 0:
			accel = g.uniform(minEffortFraction*p.MaxAcceleration, p.MaxAcceleration)
			accel = math.Min(accel, need)
		case need < 0:
			accel = g.uniform(-p.MaxDeceleration, -minEffortFraction*p.MaxDeceleration)
			accel = math.Max(accel, need)
		}
		next = speed + accel*models.KmhPerMps
	default:
		noise := 0.0
		if seg.kind == cruise && p.CruiseNoise > 0 {
			noise = distuv.Normal{Mu: 0, Sigma: p.CruiseNoise, Src: g.src}.Rand()
			noise = clamp(noise, -noiseClampSigma*p.CruiseNoise, noiseClampSigma*p.CruiseNoise)
		}
		delta := cruiseGain*(seg.target-speed) + noise
		delta = clamp(delta, -p.MaxDeceleration*models.KmhPerMps, p.MaxAcceleration*models.KmhPerMps)
		next = speed + delta
	}

	return clamp(next, 0, p.MaxSpeed)
}

func (g *generator) sample(t int64, speed, accel float64) models.Sample {
	p := g.profile
	fuel := p.BaseFuelRate + p.FuelSpeedCoefficient*speed + p.FuelAccelPenalty*math.Max(accel, 0)
	return models.Sample{
		Timestamp:    t,
		Speed:        speed,
		Acceleration: accel,
		FuelRate:     math.Max(fuel, models.IdleFuelRate),
		VehicleType:  p.Vehicle,
		ProfileType:  p.Profile,
	}
}

func (g *generator) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: g.src}.Rand()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
