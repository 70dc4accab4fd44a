// Package store persists datasets in the tabular record format and manages
// the sample directory that generated runs are written to.
package store

import (
	"bufio"
	"cmp"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"vehicle-dynamics-dashboard/internal/models"
	"vehicle-dynamics-dashboard/internal/parser"
)

// DefaultSampleDir is where generated runs are written.
const DefaultSampleDir = "sample_data"

const (
	filePrefix   = "sample_data"
	fileTimeFmt  = "20060102_150405"
	writeBufSize = 64 * 1024
)

// Store owns a sample directory
type Store struct {
	dir   string
	permD os.FileMode
}

// New returns a store rooted at dir
func New(dir string) *Store {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultSampleDir
	}
	return &Store{dir: dir, permD: 0o755}
}

// Dir returns the sample directory.
func (s *Store) Dir() string {
	return s.dir
}

// NewFileName encodes the pair and generation time in a file name.
func NewFileName(pair models.Pair, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.csv", filePrefix, pair.Vehicle, pair.Profile, at.Format(fileTimeFmt))
}

// SaveGenerated writes a generated dataset into the sample directory and
// returns the path written.
func (s *Store) SaveGenerated(ds *models.Dataset, pair models.Pair, at time.Time) (string, error) {
	if err := os.MkdirAll(s.dir, s.permD); err != nil {
		return "", fmt.Errorf("failed to create sample dir: %w", err)
	}
	dest := filepath.Join(s.dir, NewFileName(pair, at))
	if err := Save(ds, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// List returns the CSV files in the sample directory, sorted by name. A
// missing directory is treated as empty.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(s.dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

// Load parses a record file, picking the format from its extension.
func (s *Store) Load(path string) (*models.Dataset, error) {
	format := "csv"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return parser.NewParser(format).ParseFile(path)
}

// Save writes ds to dest as CSV, one row per sample in timestamp order.
// The file is replaced atomically: readers see either the old file or the
// complete new one.
func Save(ds *models.Dataset, dest string) error {
	if ds.Len() == 0 {
		return fmt.Errorf("%w: nothing to save", models.ErrEmptyDataset)
	}

	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, 0o644)

	bw := bufio.NewWriterSize(tmp, writeBufSize)
	if err := writeCSV(bw, ds.Samples); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", dest, err)
	}
	_ = syncDir(dir)
	return nil
}

func writeCSV(w *bufio.Writer, samples []models.Sample) error {
	ordered := slices.Clone(samples)
	slices.SortStableFunc(ordered, func(a, b models.Sample) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(parser.Columns); err != nil {
		return err
	}
	row := make([]string, len(parser.Columns))
	for _, s := range ordered {
		row[0] = strconv.FormatInt(s.Timestamp, 10)
		row[1] = formatFloat(s.Speed)
		row[2] = formatFloat(s.Acceleration)
		row[3] = formatFloat(s.FuelRate)
		row[4] = string(s.VehicleType)
		row[5] = string(s.ProfileType)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatFloat uses the shortest representation that parses back exactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// syncDir is a best-effort fsync of the parent directory so the rename
// survives a crash.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
