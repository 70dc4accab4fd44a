// Package synth generates bounded, reproducible test-drive time series for a
// vehicle/profile combination.
//
// A run is built from alternating transition and cruise segments planned
// from the catalog parameters. Every sample's acceleration is the discrete
// derivative of consecutive speeds, so a generated dataset is internally
// consistent regardless of the segment that produced it.
package synth

import (
	"fmt"
	"iter"
	"log"
	"math/rand/v2"
	"slices"
	"time"

	"vehicle-dynamics-dashboard/internal/catalog"
	"vehicle-dynamics-dashboard/internal/models"
)

const (
	// DefaultSeed is used when no seed option is supplied.
	DefaultSeed uint64 = 42
	// DefaultDurationWarning is the duration above which a run is logged as
	// unusually long. It is not enforced.
	DefaultDurationWarning = 36000

	pcgStream = 0x9e3779b97f4a7c15
)

// Synthesizer produces synthetic datasets
type Synthesizer struct {
	seed       uint64
	warnAboveS int
	now        func() time.Time
	lookup     func(models.VehicleType, models.ProfileType) (models.VehicleProfile, error)
}

// Option configures a Synthesizer
type Option func(*Synthesizer)

// WithSeed fixes the random seed.
func WithSeed(seed uint64) Option {
	return func(s *Synthesizer) { s.seed = seed }
}

// WithDurationWarning sets the soft duration bound; 0 disables the warning.
func WithDurationWarning(seconds int) Option {
	return func(s *Synthesizer) { s.warnAboveS = seconds }
}

// New creates a synthesizer using the static catalog.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		seed:       DefaultSeed,
		warnAboveS: DefaultDurationWarning,
		now:        time.Now,
		lookup:     catalog.Lookup,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Seed returns the seed used for every run.
func (s *Synthesizer) Seed() uint64 {
	return s.seed
}

// Samples validates the request and returns a finite, single-use sequence
// of samples at 1 Hz, timestamps 0 through durationS-1.
func (s *Synthesizer) Samples(vt models.VehicleType, pt models.ProfileType, durationS int) (iter.Seq[models.Sample], error) {
	if !slices.Contains(models.VehicleTypes, vt) {
		return nil, fmt.Errorf("%w: unknown vehicle type %q", models.ErrValidation, vt)
	}
	if !slices.Contains(models.ProfileTypes, pt) {
		return nil, fmt.Errorf("%w: unknown profile type %q", models.ErrValidation, pt)
	}
	if durationS <= 0 {
		return nil, fmt.Errorf("%w: duration must be a positive number of seconds, got %d", models.ErrValidation, durationS)
	}

	profile, err := s.lookup(vt, pt)
	if err != nil {
		return nil, err
	}

	if s.warnAboveS > 0 && durationS > s.warnAboveS {
		log.Printf("synth: %s run of %ds exceeds the %ds soft limit", profile.Pair, durationS, s.warnAboveS)
	}

	g := newGenerator(profile, s.seed, int64(durationS))
	return g.run, nil
}

// Synthesize materializes a full run into a Dataset.
func (s *Synthesizer) Synthesize(vt models.VehicleType, pt models.ProfileType, durationS int) (*models.Dataset, error) {
	seq, err := s.Samples(vt, pt, durationS)
	if err != nil {
		return nil, err
	}

	samples := make([]models.Sample, 0, durationS)
	for sample := range seq {
		samples = append(samples, sample)
	}

	return &models.Dataset{
		Source:   fmt.Sprintf("synthetic:%s_%s:seed=%d", vt, pt, s.seed),
		LoadedAt: s.now(),
		Samples:  samples,
	}, nil
}

func newSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, pcgStream)
}
