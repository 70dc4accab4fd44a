// Package chart turns a selection of samples into figures and renders them
// as PNG or interactive HTML.
package chart

import (
	"fmt"
	"strings"

	"vehicle-dynamics-dashboard/internal/models"
	"vehicle-dynamics-dashboard/internal/stats"
)

// Kind selects one of the dashboard's figures
type Kind string

const (
	BasicStats     Kind = "basic-stats"
	Acceleration   Kind = "acceleration"
	FuelEfficiency Kind = "fuel-efficiency"
	Braking        Kind = "braking"
	Speed          Kind = "speed"
)

// Kinds lists every figure kind in menu order.
var Kinds = []Kind{BasicStats, Acceleration, FuelEfficiency, Braking, Speed}

// ParseKind accepts a kind name in any case.
func ParseKind(s string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if v == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown chart kind %q", models.ErrValidation, s)
}

// Style is how a series is drawn
type Style string

const (
	LineStyle    Style = "line"
	ScatterStyle Style = "scatter"
)

// Point is one (x, y) value of a series
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Series is a named sequence of points
type Series struct {
	Name   string  `json:"name"`
	Style  Style   `json:"style"`
	Points []Point `json:"points"`
}

// Bar is one category of a bar figure
type Bar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Figure is a renderer-independent description of a chart. Either Series
// or Bars is populated.
type Figure struct {
	Kind      Kind     `json:"kind"`
	Title     string   `json:"title"`
	XLabel    string   `json:"x_label"`
	YLabel    string   `json:"y_label"`
	Series    []Series `json:"series,omitempty"`
	Bars      []Bar    `json:"bars,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// Build assembles the figure of the given kind for one selection.
func Build(kind Kind, samples []models.Sample, threshold float64) (*Figure, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: nothing to plot", models.ErrEmptyDataset)
	}
	pair := samples[0].Pair()

	switch kind {
	case BasicStats:
		return basicStats(pair, samples)
	case Acceleration:
		return &Figure{
			Kind:   kind,
			Title:  fmt.Sprintf("Acceleration over time (%s)", pair),
			XLabel: "Time (s)",
			YLabel: "Acceleration (m/s²)",
			Series: []Series{timeSeries("acceleration", samples, func(s models.Sample) float64 { return s.Acceleration })},
		}, nil
	case Speed:
		return &Figure{
			Kind:   kind,
			Title:  fmt.Sprintf("Speed over time (%s)", pair),
			XLabel: "Time (s)",
			YLabel: "Speed (km/h)",
			Series: []Series{timeSeries("speed", samples, func(s models.Sample) float64 { return s.Speed })},
		}, nil
	case FuelEfficiency:
		eff := stats.FuelEfficiency(samples)
		pts := make([]Point, len(samples))
		for i, s := range samples {
			pts[i] = Point{X: float64(s.Timestamp), Y: eff[i]}
		}
		return &Figure{
			Kind:   kind,
			Title:  fmt.Sprintf("Fuel efficiency (%s)", pair),
			XLabel: "Time (s)",
			YLabel: "Fuel efficiency (L/100km)",
			Series: []Series{{Name: "fuel efficiency", Style: LineStyle, Points: pts}},
		}, nil
	case Braking:
		return braking(pair, samples, threshold), nil
	}
	return nil, fmt.Errorf("%w: unknown chart kind %q", models.ErrValidation, kind)
}

func basicStats(pair models.Pair, samples []models.Sample) (*Figure, error) {
	speeds := make([]float64, len(samples))
	for i, s := range samples {
		speeds[i] = s.Speed
	}
	d, err := stats.Describe(speeds)
	if err != nil {
		return nil, err
	}

	return &Figure{
		Kind:   BasicStats,
		Title:  fmt.Sprintf("Speed statistics (%s)", pair),
		XLabel: "Statistic",
		YLabel: "Speed (km/h)",
		Bars: []Bar{
			{Label: "mean", Value: d.Mean},
			{Label: "median", Value: d.Median},
			{Label: "std_dev", Value: d.StdDev},
			{Label: "min", Value: d.Min},
			{Label: "max", Value: d.Max},
			{Label: "range", Value: d.Range},
			{Label: "q1", Value: d.Q1},
			{Label: "q3", Value: d.Q3},
		},
	}, nil
}

func braking(pair models.Pair, samples []models.Sample, threshold float64) *Figure {
	mask := stats.BrakingMask(samples, threshold)
	var events []Point
	for i, s := range samples {
		if mask[i] {
			events = append(events, Point{X: float64(s.Timestamp), Y: s.Acceleration})
		}
	}

	return &Figure{
		Kind:   Braking,
		Title:  fmt.Sprintf("Braking events (%s)", pair),
		XLabel: "Time (s)",
		YLabel: "Acceleration (m/s²)",
		Series: []Series{
			timeSeries("acceleration", samples, func(s models.Sample) float64 { return s.Acceleration }),
			{Name: "braking", Style: ScatterStyle, Points: events},
		},
		Threshold: &threshold,
	}
}

func timeSeries(name string, samples []models.Sample, f func(models.Sample) float64) Series {
	pts := make([]Point, len(samples))
	for i, s := range samples {
		pts[i] = Point{X: float64(s.Timestamp), Y: f(s)}
	}
	return Series{Name: name, Style: LineStyle, Points: pts}
}
