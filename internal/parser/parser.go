package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"vehicle-dynamics-dashboard/internal/models"
)

// Column names of the tabular schema, in the order they are written.
const (
	ColTimestamp    = "timestamp"
	ColSpeed        = "speed"
	ColAcceleration = "acceleration"
	ColFuelRate     = "fuel_rate"
	ColVehicleType  = "vehicle_type"
	ColProfileType  = "profile_type"
)

// Columns is the canonical column list. Every column is required on load.
var Columns = []string{ColTimestamp, ColSpeed, ColAcceleration, ColFuelRate, ColVehicleType, ColProfileType}

// Parser handles parsing of test-drive record files
type Parser struct {
	format string
	now    func() time.Time
}

// NewParser creates a new parser with the specified format (csv or json)
func NewParser(format string) *Parser {
	if format == "" {
		format = "csv"
	}
	return &Parser{format: format, now: time.Now}
}

// ParseFile parses a record file into a dataset
func (p *Parser) ParseFile(filename string) (*models.Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	ds, err := p.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	ds.Source = filename
	return ds, nil
}

// Parse reads a record set from r
func (p *Parser) Parse(r io.Reader) (*models.Dataset, error) {
	var (
		samples []models.Sample
		err     error
	)

	switch strings.ToLower(p.format) {
	case "csv":
		samples, err = p.parseCSV(r)
	case "json":
		samples, err = p.parseJSON(r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", p.format)
	}
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no data rows", models.ErrEmptyDataset)
	}

	ds := &models.Dataset{LoadedAt: p.now(), Samples: samples}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// parseCSV parses CSV formatted records
func (p *Parser) parseCSV(r io.Reader) ([]models.Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", models.ErrSchema, err)
	}

	// Map header indices
	indices := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		indices[key] = i
	}
	var missing []string
	for _, col := range Columns {
		if _, ok := indices[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", models.ErrSchema, strings.Join(missing, ", "))
	}

	var results []models.Sample
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrSchema, lineNum, err)
		}

		sample, err := recordToSample(record, indices)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrSchema, lineNum, err)
		}
		results = append(results, sample)
	}

	return results, nil
}

// recordToSample converts a CSV record to a Sample
func recordToSample(record []string, indices map[string]int) (models.Sample, error) {
	var s models.Sample
	var err error

	getValue := func(key string) (string, error) {
		idx := indices[key]
		if idx >= len(record) {
			return "", fmt.Errorf("missing value for %s", key)
		}
		return strings.TrimSpace(record[idx]), nil
	}
	getFloat := func(key string) (float64, error) {
		v, err := getValue(key)
		if err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%s: %q is not a number", key, v)
		}
		return f, nil
	}

	ts, err := getValue(ColTimestamp)
	if err != nil {
		return s, err
	}
	if s.Timestamp, err = parseTimestamp(ts); err != nil {
		return s, err
	}
	if s.Speed, err = getFloat(ColSpeed); err != nil {
		return s, err
	}
	if s.Acceleration, err = getFloat(ColAcceleration); err != nil {
		return s, err
	}
	if s.FuelRate, err = getFloat(ColFuelRate); err != nil {
		return s, err
	}

	vt, err := getValue(ColVehicleType)
	if err != nil {
		return s, err
	}
	if s.VehicleType, err = models.ParseVehicleType(vt); err != nil {
		return s, err
	}
	pt, err := getValue(ColProfileType)
	if err != nil {
		return s, err
	}
	if s.ProfileType, err = models.ParseProfileType(pt); err != nil {
		return s, err
	}

	if errs := ValidateSample(&s); len(errs) > 0 {
		return s, errors.New(strings.Join(errs, "; "))
	}
	return s, nil
}

// jsonSample mirrors models.Sample with optional fields so that missing
// keys can be told apart from zero values.
type jsonSample struct {
	Timestamp    *json.Number        `json:"timestamp"`
	Speed        *float64            `json:"speed"`
	Acceleration *float64            `json:"acceleration"`
	FuelRate     *float64            `json:"fuel_rate"`
	VehicleType  *models.VehicleType `json:"vehicle_type"`
	ProfileType  *models.ProfileType `json:"profile_type"`
}

func (j jsonSample) toSample() (models.Sample, error) {
	var missing []string
	if j.Timestamp == nil {
		missing = append(missing, ColTimestamp)
	}
	if j.Speed == nil {
		missing = append(missing, ColSpeed)
	}
	if j.Acceleration == nil {
		missing = append(missing, ColAcceleration)
	}
	if j.FuelRate == nil {
		missing = append(missing, ColFuelRate)
	}
	if j.VehicleType == nil {
		missing = append(missing, ColVehicleType)
	}
	if j.ProfileType == nil {
		missing = append(missing, ColProfileType)
	}
	if len(missing) > 0 {
		return models.Sample{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	ts, err := parseTimestamp(j.Timestamp.String())
	if err != nil {
		return models.Sample{}, err
	}
	s := models.Sample{
		Timestamp:    ts,
		Speed:        *j.Speed,
		Acceleration: *j.Acceleration,
		FuelRate:     *j.FuelRate,
		VehicleType:  *j.VehicleType,
		ProfileType:  *j.ProfileType,
	}
	if errs := ValidateSample(&s); len(errs) > 0 {
		return s, errors.New(strings.Join(errs, "; "))
	}
	return s, nil
}

// parseJSON parses a JSON array of samples, falling back to newline
// delimited JSON
func (p *Parser) parseJSON(r io.Reader) ([]models.Sample, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var raw []jsonSample
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrSchema, err)
		}
		results := make([]models.Sample, 0, len(raw))
		for i, js := range raw {
			s, err := js.toSample()
			if err != nil {
				return nil, fmt.Errorf("%w: record %d: %v", models.ErrSchema, i+1, err)
			}
			results = append(results, s)
		}
		return results, nil
	}

	return parseJSONLines(bytes.NewReader(trimmed))
}

// parseJSONLines parses newline-delimited JSON
func parseJSONLines(r io.Reader) ([]models.Sample, error) {
	var results []models.Sample
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var js jsonSample
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&js); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrSchema, lineNum, err)
		}
		s, err := js.toSample()
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrSchema, lineNum, err)
		}
		results = append(results, s)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", models.ErrSchema, lineNum+1, err)
	}
	return results, nil
}

// parseTimestamp accepts whole seconds, also written as an integral float
func parseTimestamp(s string) (int64, error) {
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ts, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("timestamp: %q is not a number", s)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("timestamp: %q is not a whole number of seconds", s)
	}
	return int64(f), nil
}

// ValidateSample checks the value ranges of a parsed sample
func ValidateSample(s *models.Sample) []string {
	var errs []string

	if s.Timestamp < 0 {
		errs = append(errs, "timestamp cannot be negative")
	}
	if s.Speed < 0 {
		errs = append(errs, "speed cannot be negative")
	}
	if s.FuelRate < 0 {
		errs = append(errs, "fuel_rate cannot be negative")
	}
	if math.IsNaN(s.Acceleration) || math.IsInf(s.Acceleration, 0) {
		errs = append(errs, "acceleration must be finite")
	}

	return errs
}
