// Package session holds the dashboard's working state: the active dataset,
// its compatibility index and the current selection.
package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"vehicle-dynamics-dashboard/internal/chart"
	"vehicle-dynamics-dashboard/internal/compat"
	"vehicle-dynamics-dashboard/internal/models"
	"vehicle-dynamics-dashboard/internal/stats"
	"vehicle-dynamics-dashboard/internal/store"
	"vehicle-dynamics-dashboard/internal/synth"
)

// Options configures a Session. Zero values fall back to the package
// defaults, except Seed where 0 is a valid seed.
type Options struct {
	Store            *store.Store
	BrakingThreshold float64
	Seed             uint64
	DefaultDurationS int
	DurationWarnS    int
}

// Session is safe for concurrent use. The dataset, index and selection are
// swapped together so readers never observe a mix of old and new state.
type Session struct {
	mu    sync.RWMutex
	cur   *state
	opts  Options
	store *store.Store
	now   func() time.Time
}

type state struct {
	ds    *models.Dataset
	index *compat.Map
	sel   models.Pair
}

// Snapshot is an immutable view of the session
type Snapshot struct {
	Source       string       `json:"source,omitempty"`
	LoadedAt     time.Time    `json:"loaded_at"`
	Samples      int          `json:"samples"`
	Combinations compat.View  `json:"combinations"`
	Selection    *models.Pair `json:"selection,omitempty"`
}

// GenerateRequest asks for a new synthetic run
type GenerateRequest struct {
	Vehicle   models.VehicleType `json:"vehicle_type"`
	Profile   models.ProfileType `json:"profile_type"`
	DurationS *int               `json:"duration_s,omitempty"` // nil means the configured default
	Seed      *uint64            `json:"seed,omitempty"`
}

// New returns an empty session
func New(opts Options) *Session {
	if opts.Store == nil {
		opts.Store = store.New("")
	}
	if opts.BrakingThreshold == 0 {
		opts.BrakingThreshold = stats.DefaultBrakingThreshold
	}
	if opts.DefaultDurationS <= 0 {
		opts.DefaultDurationS = 300
	}
	if opts.DurationWarnS == 0 {
		opts.DurationWarnS = synth.DefaultDurationWarning
	}
	return &Session{
		cur:   &state{index: compat.Build(nil)},
		opts:  opts,
		store: opts.Store,
		now:   time.Now,
	}
}

// Store returns the sample directory the session reads and writes.
func (s *Session) Store() *store.Store {
	return s.store
}

// BrakingThreshold returns the threshold used for braking detection.
func (s *Session) BrakingThreshold() float64 {
	return s.opts.BrakingThreshold
}

// Load parses a record file and makes it the active dataset.
func (s *Session) Load(path string) (Snapshot, error) {
	ds, err := s.store.Load(path)
	if err != nil {
		return Snapshot{}, err
	}
	log.Printf("session: loaded %d samples from %s", ds.Len(), path)
	return s.Install(ds), nil
}

// Install makes ds the active dataset and selects its first pair.
func (s *Session) Install(ds *models.Dataset) Snapshot {
	next := &state{ds: ds, index: compat.Build(ds)}
	if def, ok := next.index.Default(); ok {
		next.sel = def
	}

	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()

	return next.snapshot()
}

// Generate synthesizes a run, saves it to the sample directory and loads
// the saved file back, returning the path written.
func (s *Session) Generate(req GenerateRequest) (string, Snapshot, error) {
	duration := s.opts.DefaultDurationS
	if req.DurationS != nil {
		duration = *req.DurationS
	}
	seed := s.opts.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	gen := synth.New(synth.WithSeed(seed), synth.WithDurationWarning(s.opts.DurationWarnS))
	ds, err := gen.Synthesize(req.Vehicle, req.Profile, duration)
	if err != nil {
		return "", Snapshot{}, err
	}

	pair := models.Pair{Vehicle: req.Vehicle, Profile: req.Profile}
	path, err := s.store.SaveGenerated(ds, pair, s.now())
	if err != nil {
		return "", Snapshot{}, fmt.Errorf("failed to save generated run: %w", err)
	}
	log.Printf("session: generated %ds %s run (seed %d) into %s", duration, pair, seed, path)

	snap, err := s.Load(path)
	if err != nil {
		return "", Snapshot{}, err
	}
	return path, snap, nil
}

// Select sets the current pair, which must be present in the dataset.
func (s *Session) Select(vt models.VehicleType, pt models.ProfileType) (models.Pair, error) {
	pair := models.Pair{Vehicle: vt, Profile: pt}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cur.index.Contains(pair) {
		return models.Pair{}, fmt.Errorf("%w: %s is not in the dataset", models.ErrEmptySelection, pair)
	}
	s.cur = &state{ds: s.cur.ds, index: s.cur.index, sel: pair}
	return pair, nil
}

// Cascade changes one side of the selection and resolves the other side
// against the compatibility index.
func (s *Session) Cascade(changed compat.Axis, value string) (models.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.cur.sel
	switch changed {
	case compat.VehicleAxis:
		vt, err := models.ParseVehicleType(value)
		if err != nil {
			return models.Pair{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		sel.Vehicle = vt
	case compat.ProfileAxis:
		pt, err := models.ParseProfileType(value)
		if err != nil {
			return models.Pair{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		sel.Profile = pt
	default:
		return models.Pair{}, fmt.Errorf("%w: unknown selection axis %q", models.ErrValidation, changed)
	}

	next, ok := s.cur.index.Cascade(sel, changed)
	if !ok {
		return models.Pair{}, fmt.Errorf("%w: no combination for %s %q", models.ErrEmptySelection, changed, value)
	}
	s.cur = &state{ds: s.cur.ds, index: s.cur.index, sel: next}
	return next, nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	return s.state().snapshot()
}

// Dataset returns the active dataset, or nil.
func (s *Session) Dataset() *models.Dataset {
	return s.state().ds
}

// Selection returns the samples of the current pair.
func (s *Session) Selection() (models.Pair, []models.Sample, error) {
	st := s.state()
	if st.ds.Len() == 0 {
		return models.Pair{}, nil, fmt.Errorf("%w: no dataset loaded", models.ErrEmptySelection)
	}
	samples, err := stats.Filter(st.ds, st.sel.Vehicle, st.sel.Profile)
	if err != nil {
		return models.Pair{}, nil, err
	}
	return st.sel, samples, nil
}

// Summary computes the statistics summary of the current selection.
func (s *Session) Summary() (*models.StatisticsSummary, error) {
	_, samples, err := s.Selection()
	if err != nil {
		return nil, err
	}
	return stats.Summarize(samples, s.opts.BrakingThreshold)
}

// SummaryAll describes every channel of the current selection.
func (s *Session) SummaryAll() (*stats.Channels, error) {
	_, samples, err := s.Selection()
	if err != nil {
		return nil, err
	}
	return stats.SummarizeAll(samples)
}

// BrakingEvents lists the braking events of the current selection.
func (s *Session) BrakingEvents() ([]models.BrakingEvent, error) {
	_, samples, err := s.Selection()
	if err != nil {
		return nil, err
	}
	return stats.BrakingEvents(samples, s.opts.BrakingThreshold), nil
}

// Figure builds a chart of the current selection.
func (s *Session) Figure(kind chart.Kind) (*chart.Figure, error) {
	_, samples, err := s.Selection()
	if err != nil {
		return nil, err
	}
	return chart.Build(kind, samples, s.opts.BrakingThreshold)
}

func (s *Session) state() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (st *state) snapshot() Snapshot {
	snap := Snapshot{
		Samples:      st.ds.Len(),
		Combinations: st.index.View(),
	}
	if st.ds != nil {
		snap.Source = st.ds.Source
		snap.LoadedAt = st.ds.LoadedAt
	}
	if st.index.Contains(st.sel) {
		sel := st.sel
		snap.Selection = &sel
	}
	return snap
}
