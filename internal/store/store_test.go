package store

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-dynamics-dashboard/internal/models"
	"vehicle-dynamics-dashboard/internal/synth"
)

var sampleTolerance = cmpopts.EquateApprox(0, 1e-6)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	gen := synth.New(synth.WithSeed(11))

	for _, vt := range models.VehicleTypes {
		for _, pt := range models.ProfileTypes {
			ds, err := gen.Synthesize(vt, pt, 240)
			require.NoError(t, err)

			path := filepath.Join(s.Dir(), string(vt)+"_"+string(pt)+".csv")
			require.NoError(t, Save(ds, path))

			loaded, err := s.Load(path)
			require.NoError(t, err)
			if diff := cmp.Diff(ds.Samples, loaded.Samples, sampleTolerance); diff != "" {
				t.Fatalf("%s/%s round trip mismatch (-saved +loaded):\n%s", vt, pt, diff)
			}
		}
	}
}

func TestSaveWritesTimestampOrder(t *testing.T) {
	t.Parallel()

	ds := &models.Dataset{Samples: []models.Sample{
		{Timestamp: 0, Speed: 1, FuelRate: 1, VehicleType: models.Sedan, ProfileType: models.Urban},
		{Timestamp: 1, Speed: 2, FuelRate: 1, VehicleType: models.Sedan, ProfileType: models.Urban},
		{Timestamp: 0, Speed: 3, FuelRate: 1, VehicleType: models.SUV, ProfileType: models.Highway},
		{Timestamp: 1, Speed: 4, FuelRate: 1, VehicleType: models.SUV, ProfileType: models.Highway},
	}}

	path := filepath.Join(t.TempDir(), "merged.csv")
	require.NoError(t, Save(ds, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"timestamp,speed,acceleration,fuel_rate,vehicle_type,profile_type\n"+
			"0,1,0,1,sedan,urban\n"+
			"0,3,0,1,SUV,highway\n"+
			"1,2,0,1,sedan,urban\n"+
			"1,4,0,1,SUV,highway\n",
		string(raw))

	loaded, err := New("").Load(path)
	require.NoError(t, err)
	want := slices.Clone(ds.Samples)
	want[1], want[2] = want[2], want[1]
	assert.Empty(t, cmp.Diff(want, loaded.Samples, sampleTolerance))
}

func TestSaveIsAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "active.csv")
	require.NoError(t, os.WriteFile(dest, []byte("previous"), 0o644))

	t.Run("empty dataset leaves destination untouched", func(t *testing.T) {
		err := Save(&models.Dataset{}, dest)
		require.ErrorIs(t, err, models.ErrEmptyDataset)

		raw, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "previous", string(raw))
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		ds := &models.Dataset{Samples: []models.Sample{
			{Timestamp: 0, Speed: 1, FuelRate: 1, VehicleType: models.Sports, ProfileType: models.Sport},
		}}
		require.NoError(t, Save(ds, dest))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "active.csv", entries[0].Name())
	})

	t.Run("missing directory fails", func(t *testing.T) {
		ds := &models.Dataset{Samples: []models.Sample{{VehicleType: models.Sedan, ProfileType: models.Urban}}}
		assert.Error(t, Save(ds, filepath.Join(dir, "nope", "x.csv")))
	})
}

func TestSaveGeneratedAndList(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "sample_data"))

	files, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	ds, err := synth.New().Synthesize(models.SUV, models.Highway, 30)
	require.NoError(t, err)

	at := time.Date(2026, 10, 15, 8, 5, 9, 0, time.UTC)
	pair := models.Pair{Vehicle: models.SUV, Profile: models.Highway}
	path, err := s.SaveGenerated(ds, pair, at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "sample_data_SUV_highway_20261015_080509.csv"), path)

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644))

	files, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestNewDefaultsDir(t *testing.T) {
	t.Parallel()
	assert.Equal(t, DefaultSampleDir, New("  ").Dir())
}
