package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-dynamics-dashboard/internal/store"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestGenerateSummarizePlotArchive(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	samples := filepath.Join(dir, "runs")
	dbFile := filepath.Join(dir, "archive.db")
	global := []string{"--sample-dir", samples, "--db", dbFile}

	require.NoError(t, run(t, append([]string{"generate", "-V", "suv", "-P", "highway", "-d", "120"}, global...)...))

	files, err := store.New(samples).List()
	require.NoError(t, err)
	require.Len(t, files, 1)

	require.NoError(t, run(t, append([]string{"files"}, global...)...))
	require.NoError(t, run(t, append([]string{"combos", "-o", "json"}, global...)...))
	require.NoError(t, run(t, append([]string{"summary", files[0]}, global...)...))
	require.NoError(t, run(t, append([]string{"summary", "--all"}, global...)...))
	require.NoError(t, run(t, append([]string{"summary", "--events", "-V", "SUV"}, global...)...))

	png := filepath.Join(dir, "speed.png")
	require.NoError(t, run(t, append([]string{"plot", "-k", "speed", "-o", png}, global...)...))
	info, err := os.Stat(png)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	html := filepath.Join(dir, "braking.html")
	require.NoError(t, run(t, append([]string{"plot", "-k", "braking", "-f", "html", "-o", html}, global...)...))

	require.NoError(t, run(t, append([]string{"archive", files[0]}, global...)...))
	require.NoError(t, run(t, append([]string{"runs", "list"}, global...)...))
	require.NoError(t, run(t, append([]string{"stats"}, global...)...))
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	global := []string{"--sample-dir", filepath.Join(dir, "empty"), "--db", filepath.Join(dir, "a.db")}

	assert.Error(t, run(t, append([]string{"generate", "-V", "truck"}, global...)...))
	assert.Error(t, run(t, append([]string{"generate", "-d=-5"}, global...)...))
	assert.Error(t, run(t, append([]string{"generate", "-d", "0"}, global...)...))
	assert.Error(t, run(t, append([]string{"summary"}, global...)...), "no files to summarize")
	assert.Error(t, run(t, append([]string{"plot", "-k", "pie"}, global...)...))
	assert.Error(t, run(t, append([]string{"runs", "show", "missing"}, global...)...))
	assert.Error(t, run(t, "--config", filepath.Join(dir, "missing.json"), "files"))
}

func TestConfigFileSuppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("vdash.json", []byte(`{"sample_dir": "from_config", "db_path": "cfg.db", "default_duration_s": 30}`), 0o644))

	require.NoError(t, run(t, "generate", "-V", "sports", "-P", "sport"))

	files, err := store.New("from_config").List()
	require.NoError(t, err)
	require.Len(t, files, 1)

	ds, err := store.New("from_config").Load(files[0])
	require.NoError(t, err)
	assert.Equal(t, 30, ds.Len())
}
