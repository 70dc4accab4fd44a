package synth

import (
	"math"
	"math/rand/v2"

	"vehicle-dynamics-dashboard/internal/models"
)

// planner decides the next segment from the profile and what has been
// driven so far. Stops are placed on a jittered interval derived from the
// profile's stop frequency; all other transitions swing around the cruise
// target.
type planner struct {
	profile  models.VehicleProfile
	rng      *rand.Rand
	last     *segment
	arrived  bool
	lastStop int64
	stopDue  float64
}

func newPlanner(profile models.VehicleProfile, rng *rand.Rand) *planner {
	p := &planner{profile: profile, rng: rng}
	p.stopDue = p.nextStopInterval()
	return p
}

func (p *planner) next(speed float64, t int64) segment {
	prof := p.profile

	if p.last != nil && p.last.kind == transition {
		if p.last.target == 0 && p.arrived {
			return segment{kind: dwell, target: 0, length: p.between(prof.DwellMinS, prof.DwellMaxS)}
		}
		target := p.last.target
		if !p.arrived {
			// Ran out of time before reaching the target: hold what we have.
			target = speed
		}
		return segment{kind: cruise, target: target, length: p.between(prof.CruiseMinS, prof.CruiseMaxS)}
	}

	if p.last != nil && p.last.kind == dwell {
		p.lastStop = t
		p.stopDue = p.nextStopInterval()
	} else if p.stopDue > 0 && float64(t-p.lastStop) >= p.stopDue && speed > 0 {
		return segment{kind: transition, target: 0, length: max(prof.TransitionMax, 1)}
	}

	return segment{kind: transition, target: p.swingTarget(), length: max(prof.TransitionMax, 1)}
}

// finish records the outcome of the segment just driven.
func (p *planner) finish(seg segment, speed float64) {
	p.last = &seg
	p.arrived = math.Abs(speed-seg.target) <= arriveToleranceKmh
}

func (p *planner) swingTarget() float64 {
	prof := p.profile
	swing := prof.TargetSwing * prof.CruiseSpeedTarget
	target := prof.CruiseSpeedTarget + (2*p.rng.Float64()-1)*swing
	return clamp(target, arriveToleranceKmh*2, prof.MaxSpeed)
}

func (p *planner) nextStopInterval() float64 {
	interval := p.profile.StopIntervalSeconds()
	if interval <= 0 {
		return 0
	}
	return interval * (0.75 + 0.5*p.rng.Float64())
}

// between returns a uniform integer in [lo, hi], never below 1.
func (p *planner) between(lo, hi int) int {
	lo = max(lo, 1)
	if hi <= lo {
		return lo
	}
	return lo + p.rng.IntN(hi-lo+1)
}
