package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-dynamics-dashboard/internal/models"
)

const validCSV = `timestamp,speed,acceleration,fuel_rate,vehicle_type,profile_type
0,0,0,0.8,sedan,urban
1,3.6,1,2.998,sedan,urban
2,10.8,2,4.19,sedan,urban
`

func TestParseCSV(t *testing.T) {
	t.Parallel()

	ds, err := NewParser("csv").Parse(strings.NewReader(validCSV))
	require.NoError(t, err)
	require.Len(t, ds.Samples, 3)

	assert.Equal(t, models.Sample{
		Timestamp: 2, Speed: 10.8, Acceleration: 2, FuelRate: 4.19,
		VehicleType: models.Sedan, ProfileType: models.Urban,
	}, ds.Samples[2])
}

func TestParseCSVColumnOrderAndCase(t *testing.T) {
	t.Parallel()

	input := "Profile_Type, Vehicle_Type ,FUEL_RATE,acceleration,speed,timestamp,notes\n" +
		"highway,suv,3.5,-0.25,88.2,10,first\n" +
		"highway,SUV,3.4,-0.5,86.4,11,\n"

	ds, err := NewParser("").Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, ds.Samples, 2)
	assert.Equal(t, models.SUV, ds.Samples[0].VehicleType)
	assert.Equal(t, models.Highway, ds.Samples[0].ProfileType)
	assert.Equal(t, int64(11), ds.Samples[1].Timestamp)
	assert.InDelta(t, -0.5, ds.Samples[1].Acceleration, 1e-12)
}

func TestParseCSVErrors(t *testing.T) {
	t.Parallel()

	header := "timestamp,speed,acceleration,fuel_rate,vehicle_type,profile_type\n"
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty input", "", models.ErrEmptyDataset},
		{"header only", header, models.ErrEmptyDataset},
		{"missing column", "timestamp,speed,acceleration,vehicle_type,profile_type\n0,1,0,sedan,urban\n", models.ErrSchema},
		{"non numeric speed", header + "0,fast,0,1,sedan,urban\n", models.ErrSchema},
		{"non numeric fuel", header + "0,1,0,NaN,sedan,urban\n", models.ErrSchema},
		{"fractional timestamp", header + "0.5,1,0,1,sedan,urban\n", models.ErrSchema},
		{"unknown vehicle", header + "0,1,0,1,truck,urban\n", models.ErrSchema},
		{"unknown profile", header + "0,1,0,1,sedan,mixed\n", models.ErrSchema},
		{"negative speed", header + "0,-1,0,1,sedan,urban\n", models.ErrSchema},
		{"short row", header + "0,1,0\n", models.ErrSchema},
		{"timestamps not increasing", header + "1,1,0,1,sedan,urban\n1,1,0,1,sedan,urban\n", models.ErrSchema},
		{"uneven step", header + "0,1,0,1,sedan,urban\n1,1,0,1,sedan,urban\n3,1,0,1,sedan,urban\n", models.ErrSchema},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewParser("csv").Parse(strings.NewReader(tc.input))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseCSVMergedPairs(t *testing.T) {
	t.Parallel()

	input := "timestamp,speed,acceleration,fuel_rate,vehicle_type,profile_type\n" +
		"0,0,0,1,sedan,urban\n" +
		"0,0,0,1,sports,sport\n" +
		"1,2,0.5,1.2,sedan,urban\n" +
		"1,5,1.4,2,sports,sport\n"

	ds, err := NewParser("csv").Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, ds.Samples, 4)
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	t.Run("array", func(t *testing.T) {
		input := `[
			{"timestamp": 0, "speed": 0, "acceleration": 0, "fuel_rate": 1.2, "vehicle_type": "SUV", "profile_type": "highway"},
			{"timestamp": 1, "speed": 4.5, "acceleration": 1.25, "fuel_rate": 2.1, "vehicle_type": "suv", "profile_type": "Highway"}
		]`
		ds, err := NewParser("json").Parse(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, ds.Samples, 2)
		assert.Equal(t, models.SUV, ds.Samples[1].VehicleType)
		assert.Equal(t, models.Highway, ds.Samples[1].ProfileType)
	})

	t.Run("lines", func(t *testing.T) {
		input := `{"timestamp": 5, "speed": 10, "acceleration": 0, "fuel_rate": 1, "vehicle_type": "sports", "profile_type": "sport"}
{"timestamp": 6, "speed": 12, "acceleration": 0.55, "fuel_rate": 3, "vehicle_type": "sports", "profile_type": "sport"}
`
		ds, err := NewParser("json").Parse(strings.NewReader(input))
		require.NoError(t, err)
		assert.Len(t, ds.Samples, 2)
	})

	t.Run("missing field", func(t *testing.T) {
		input := `[{"timestamp": 0, "speed": 0, "acceleration": 0, "vehicle_type": "SUV", "profile_type": "highway"}]`
		_, err := NewParser("json").Parse(strings.NewReader(input))
		assert.ErrorIs(t, err, models.ErrSchema)
	})

	t.Run("empty array", func(t *testing.T) {
		_, err := NewParser("json").Parse(strings.NewReader(`[]`))
		assert.ErrorIs(t, err, models.ErrEmptyDataset)
	})

	t.Run("line too long", func(t *testing.T) {
		input := `{"timestamp": 0, "speed": 0, "acceleration": 0, "fuel_rate": 1, "vehicle_type": "SUV", "profile_type": "highway", "note": "` +
			strings.Repeat("x", 70*1024) + `"}`
		_, err := NewParser("json").Parse(strings.NewReader(input))
		assert.ErrorIs(t, err, models.ErrSchema)
	})
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, os.WriteFile(path, []byte(validCSV), 0o644))

	ds, err := NewParser("csv").ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, ds.Source)
	assert.Len(t, ds.Samples, 3)

	_, err = NewParser("csv").ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = NewParser("xml").ParseFile(path)
	assert.Error(t, err)
}

func TestValidateSample(t *testing.T) {
	t.Parallel()

	ok := models.Sample{Timestamp: 1, Speed: 10, FuelRate: 1}
	assert.Empty(t, ValidateSample(&ok))

	bad := models.Sample{Timestamp: -1, Speed: -2, FuelRate: -3}
	assert.Len(t, ValidateSample(&bad), 3)
}
