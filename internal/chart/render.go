package chart

import (
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PNG canvas size
const (
	pngWidth  = 12 * vg.Inch
	pngHeight = 5 * vg.Inch
)

var thresholdColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}

// RenderPNG draws fig with gonum/plot and writes it to w as PNG.
func RenderPNG(w io.Writer, fig *Figure) error {
	p := plot.New()
	p.Title.Text = fig.Title
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel
	p.Add(plotter.NewGrid())

	if len(fig.Bars) > 0 {
		values := make(plotter.Values, len(fig.Bars))
		labels := make([]string, len(fig.Bars))
		for i, b := range fig.Bars {
			values[i] = b.Value
			labels[i] = b.Label
		}
		bars, err := plotter.NewBarChart(values, vg.Points(24))
		if err != nil {
			return fmt.Errorf("bar chart: %w", err)
		}
		bars.Color = plotutil.Color(0)
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
		p.NominalX(labels...)
	}

	for i, s := range fig.Series {
		if len(s.Points) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			xys[j] = plotter.XY{X: pt.X, Y: pt.Y}
		}

		switch s.Style {
		case ScatterStyle:
			sc, err := plotter.NewScatter(xys)
			if err != nil {
				return fmt.Errorf("series %s: %w", s.Name, err)
			}
			sc.GlyphStyle.Color = thresholdColor
			sc.GlyphStyle.Radius = vg.Points(3)
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			p.Add(sc)
			p.Legend.Add(s.Name, sc)
		default:
			line, err := plotter.NewLine(xys)
			if err != nil {
				return fmt.Errorf("series %s: %w", s.Name, err)
			}
			line.Color = plotutil.Color(i)
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(s.Name, line)
		}
	}

	if fig.Threshold != nil {
		t := *fig.Threshold
		fn := plotter.NewFunction(func(float64) float64 { return t })
		fn.Color = thresholdColor
		fn.Width = vg.Points(1)
		fn.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(fn)
		p.Legend.Add(fmt.Sprintf("threshold (%g)", t), fn)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// RenderHTML writes fig as a self-contained go-echarts page.
func RenderHTML(w io.Writer, fig *Figure) error {
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{PageTitle: fig.Title, Width: "100%", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: fig.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithYAxisOpts(opts.YAxis{Name: fig.YLabel, NameLocation: "middle", NameGap: 40}),
	}

	if len(fig.Bars) > 0 {
		labels := make([]string, len(fig.Bars))
		data := make([]opts.BarData, len(fig.Bars))
		for i, b := range fig.Bars {
			labels[i] = b.Label
			data[i] = opts.BarData{Value: b.Value}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(append(global,
			charts.WithXAxisOpts(opts.XAxis{Name: fig.XLabel, NameLocation: "middle", NameGap: 25}))...)
		bar.SetXAxis(labels).
			AddSeries(fig.YLabel, data,
				charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
			)
		return bar.Render(w)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(append(global,
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: fig.XLabel, NameLocation: "middle", NameGap: 25}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}))...)

	var scatters []*charts.Scatter
	for _, s := range fig.Series {
		if s.Style == ScatterStyle {
			data := make([]opts.ScatterData, len(s.Points))
			for i, pt := range s.Points {
				data[i] = opts.ScatterData{Value: []interface{}{pt.X, pt.Y}}
			}
			sc := charts.NewScatter()
			sc.AddSeries(s.Name, data,
				charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: "#d62728"}))
			scatters = append(scatters, sc)
			continue
		}

		data := make([]opts.LineData, len(s.Points))
		for i, pt := range s.Points {
			data[i] = opts.LineData{Value: []interface{}{pt.X, pt.Y}}
		}
		seriesOpts := []charts.SeriesOpts{
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		}
		if fig.Threshold != nil {
			seriesOpts = append(seriesOpts,
				charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
					Name:  "threshold",
					YAxis: *fig.Threshold,
				}),
			)
		}
		line.AddSeries(s.Name, data, seriesOpts...)
	}
	for _, sc := range scatters {
		line.Overlap(sc)
	}
	return line.Render(w)
}
