package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-dynamics-dashboard/internal/db"
	"vehicle-dynamics-dashboard/internal/models"
	"vehicle-dynamics-dashboard/internal/session"
	"vehicle-dynamics-dashboard/internal/store"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Meta    *meta           `json:"meta"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	database, err := db.New(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	sess := session.New(session.Options{Store: store.New(filepath.Join(dir, "sample_data")), Seed: 42})
	return NewServer(sess, database)
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestHealth(t *testing.T) {
	t.Parallel()

	w, env := do(t, newTestServer(t), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"status":"healthy"}`, string(env.Data))
}

func TestEmptySessionReturnsNotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	for _, path := range []string{"/api/v1/summary", "/api/v1/summary/all", "/api/v1/braking-events", "/api/v1/series/speed"} {
		w, env := do(t, s, "GET", path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Error)
	}
}

func TestGenerateThenAnalyse(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	w, env := do(t, s, "POST", "/api/v1/generate", `{"vehicle_type":"sedan","profile_type":"urban","duration_s":300}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var gen generateResponse
	require.NoError(t, json.Unmarshal(env.Data, &gen))
	assert.Equal(t, 300, gen.Snapshot.Samples)
	assert.Contains(t, filepath.Base(gen.Path), "sample_data_sedan_urban_")

	w, env = do(t, s, "GET", "/api/v1/files", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.Meta.Total)

	w, env = do(t, s, "GET", "/api/v1/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sum models.StatisticsSummary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.Equal(t, 300, sum.Samples)
	assert.Len(t, sum.BrakingMask, 300)
	assert.Positive(t, sum.BrakingCount)

	w, env = do(t, s, "GET", "/api/v1/braking-events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Positive(t, env.Meta.Total)

	w, _ = do(t, s, "GET", "/api/v1/summary/all", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, s, "GET", "/api/v1/series/braking", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"threshold":-2`)

	w, _ = do(t, s, "GET", "/api/v1/charts/speed", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "echarts")

	w, _ = do(t, s, "GET", "/api/v1/charts/basic-stats?format=png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestGenerateValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"vehicle_type":`},
		{"unknown vehicle", `{"vehicle_type":"truck","profile_type":"urban"}`},
		{"missing profile", `{"vehicle_type":"SUV"}`},
		{"negative duration", `{"vehicle_type":"SUV","profile_type":"highway","duration_s":-1}`},
		{"zero duration", `{"vehicle_type":"SUV","profile_type":"highway","duration_s":0}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, env := do(t, s, "POST", "/api/v1/generate", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestChartErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	w, _ := do(t, s, "POST", "/api/v1/generate", `{"vehicle_type":"SUV","profile_type":"highway","duration_s":60}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = do(t, s, "GET", "/api/v1/charts/histogram", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, s, "GET", "/api/v1/charts/speed?format=svg", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSelectionCascade(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	w, _ := do(t, s, "POST", "/api/v1/generate", `{"vehicle_type":"sports","profile_type":"sport","duration_s":30}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := do(t, s, "PUT", "/api/v1/selection", `{"vehicle_type":"Sports"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"vehicle_type":"sports","profile_type":"sport"}`, string(env.Data))

	w, _ = do(t, s, "PUT", "/api/v1/selection", `{"vehicle_type":"sedan","profile_type":"urban"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, s, "PUT", "/api/v1/selection", `{"profile_type":"offroad"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, s, "PUT", "/api/v1/selection", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, s, "GET", "/api/v1/combinations", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Len(t, snap.Combinations.Pairs, 1)
	assert.Len(t, snap.Combinations.ByVehicle, 1)
	assert.Len(t, snap.Combinations.ByProfile, 1)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	w, env := do(t, s, "POST", "/api/v1/generate", `{"vehicle_type":"SUV","profile_type":"highway","duration_s":45}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var gen generateResponse
	require.NoError(t, json.Unmarshal(env.Data, &gen))

	w, _ = do(t, s, "POST", "/api/v1/load", `{"path":"`+filepath.Base(gen.Path)+`"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, s, "POST", "/api/v1/load", `{"path":"nope.csv"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, s, "POST", "/api/v1/load", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunArchive(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	w, _ := do(t, s, "POST", "/api/v1/runs", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "nothing loaded yet")

	w, _ = do(t, s, "POST", "/api/v1/generate", `{"vehicle_type":"sedan","profile_type":"highway","duration_s":90}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := do(t, s, "POST", "/api/v1/runs", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var run models.RunInfo
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, 90, run.SampleCount)

	w, env = do(t, s, "GET", "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.Meta.Total)

	w, _ = do(t, s, "GET", "/api/v1/runs/"+run.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, s, "POST", "/api/v1/runs/"+run.ID+"/load", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 90, snap.Samples)

	w, env = do(t, s, "GET", "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.EqualValues(t, 1, stats["total_runs"])
	assert.EqualValues(t, 90, stats["total_samples"])

	w, _ = do(t, s, "GET", "/api/v1/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, s, "DELETE", "/api/v1/runs/"+run.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, s, "POST", "/api/v1/runs/"+run.ID+"/load", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchiveDisabled(t *testing.T) {
	t.Parallel()

	sess := session.New(session.Options{Store: store.New(t.TempDir())})
	s := NewServer(sess, nil)

	w, _ := do(t, s, "GET", "/api/v1/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
