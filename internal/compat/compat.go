// Package compat derives which vehicle/profile combinations are present in
// a dataset and resolves selections against them.
package compat

import (
	"slices"

	"vehicle-dynamics-dashboard/internal/models"
)

// Map is the bidirectional vehicle/profile index of one dataset. It is a
// read-only view; rebuild it whenever the dataset changes.
type Map struct {
	pairs     []models.Pair
	byVehicle map[models.VehicleType][]models.ProfileType
	byProfile map[models.ProfileType][]models.VehicleType
	counts    map[models.Pair]int
}

// Axis names the side of a selection that changed
type Axis string

const (
	VehicleAxis Axis = "vehicle"
	ProfileAxis Axis = "profile"
)

// Build scans the dataset once and indexes every distinct pair.
func Build(ds *models.Dataset) *Map {
	m := &Map{
		byVehicle: make(map[models.VehicleType][]models.ProfileType),
		byProfile: make(map[models.ProfileType][]models.VehicleType),
		counts:    make(map[models.Pair]int),
	}
	if ds == nil {
		return m
	}

	for _, s := range ds.Samples {
		pair := s.Pair()
		if m.counts[pair] == 0 {
			m.pairs = append(m.pairs, pair)
			m.byVehicle[pair.Vehicle] = append(m.byVehicle[pair.Vehicle], pair.Profile)
			m.byProfile[pair.Profile] = append(m.byProfile[pair.Profile], pair.Vehicle)
		}
		m.counts[pair]++
	}

	slices.SortFunc(m.pairs, comparePairs)
	for _, profiles := range m.byVehicle {
		slices.Sort(profiles)
	}
	for _, vehicles := range m.byProfile {
		slices.Sort(vehicles)
	}
	return m
}

func comparePairs(a, b models.Pair) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// Empty reports whether no pair is present.
func (m *Map) Empty() bool {
	return len(m.pairs) == 0
}

// Pairs returns every pair present, ordered by vehicle then profile.
func (m *Map) Pairs() []models.Pair {
	return slices.Clone(m.pairs)
}

// Count returns the number of samples recorded for pair.
func (m *Map) Count(pair models.Pair) int {
	return m.counts[pair]
}

// Contains reports whether pair is present.
func (m *Map) Contains(pair models.Pair) bool {
	return m.counts[pair] > 0
}

// Vehicles returns the distinct vehicle types present.
func (m *Map) Vehicles() []models.VehicleType {
	out := make([]models.VehicleType, 0, len(m.byVehicle))
	for vt := range m.byVehicle {
		out = append(out, vt)
	}
	slices.Sort(out)
	return out
}

// Profiles returns the distinct profile types present.
func (m *Map) Profiles() []models.ProfileType {
	out := make([]models.ProfileType, 0, len(m.byProfile))
	for pt := range m.byProfile {
		out = append(out, pt)
	}
	slices.Sort(out)
	return out
}

// ProfilesFor returns the profiles recorded with vehicle vt.
func (m *Map) ProfilesFor(vt models.VehicleType) []models.ProfileType {
	return slices.Clone(m.byVehicle[vt])
}

// VehiclesFor returns the vehicles recorded with profile pt.
func (m *Map) VehiclesFor(pt models.ProfileType) []models.VehicleType {
	return slices.Clone(m.byProfile[pt])
}

// Default returns the first pair, which is what a fresh selection starts on.
func (m *Map) Default() (models.Pair, bool) {
	if m.Empty() {
		return models.Pair{}, false
	}
	return m.pairs[0], true
}

// Cascade resolves a selection after one side of it changed: the side that
// did not change is kept if it is still valid for the new value, otherwise
// it falls back to the first valid option. The returned pair is always in
// the map; ok is false when the changed value itself is not present.
func (m *Map) Cascade(sel models.Pair, changed Axis) (models.Pair, bool) {
	switch changed {
	case VehicleAxis:
		profiles := m.byVehicle[sel.Vehicle]
		if len(profiles) == 0 {
			return models.Pair{}, false
		}
		if !slices.Contains(profiles, sel.Profile) {
			sel.Profile = profiles[0]
		}
		return sel, true
	case ProfileAxis:
		vehicles := m.byProfile[sel.Profile]
		if len(vehicles) == 0 {
			return models.Pair{}, false
		}
		if !slices.Contains(vehicles, sel.Vehicle) {
			sel.Vehicle = vehicles[0]
		}
		return sel, true
	}
	return sel, m.Contains(sel)
}

// View is the JSON form of a Map
type View struct {
	Pairs     []models.Pair                               `json:"pairs"`
	ByVehicle map[models.VehicleType][]models.ProfileType `json:"by_vehicle"`
	ByProfile map[models.ProfileType][]models.VehicleType `json:"by_profile"`
}

// View returns a copy of the index suitable for serialisation.
func (m *Map) View() View {
	v := View{
		Pairs:     m.Pairs(),
		ByVehicle: make(map[models.VehicleType][]models.ProfileType, len(m.byVehicle)),
		ByProfile: make(map[models.ProfileType][]models.VehicleType, len(m.byProfile)),
	}
	for vt, profiles := range m.byVehicle {
		v.ByVehicle[vt] = slices.Clone(profiles)
	}
	for pt, vehicles := range m.byProfile {
		v.ByProfile[pt] = slices.Clone(vehicles)
	}
	return v
}
