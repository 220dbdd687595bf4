package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// HTML writes an interactive go-echarts page with one series per depth.
// Lines sharing a depth share a series name, so the legend toggles them
// together.
func HTML(w io.Writer, set Set) error {
	if set.empty() {
		return ErrNothingToDraw
	}

	chart := charts.NewLine()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: set.Title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: set.Title, Subtitle: fmt.Sprintf("levels=%d lines=%d samples=%d", len(set.Depths()), len(set.Lines), len(set.Samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "X", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Y", Scale: opts.Bool(true)}),
	)

	for _, l := range set.Lines {
		data := make([]opts.LineData, 0, len(l.Points))
		for _, pt := range l.Points {
			data = append(data, opts.LineData{Value: []interface{}{pt.X(), pt.Y()}})
		}
		chart.AddSeries(depthLabel(l.Depth, l.Fallback), data,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}

	if len(set.Samples) > 0 {
		pts := make([]opts.ScatterData, 0, len(set.Samples))
		for _, s := range set.Samples {
			pts = append(pts, opts.ScatterData{Value: []interface{}{s.X, s.Y, s.Z}})
		}
		scatter := charts.NewScatter()
		scatter.AddSeries("samples", pts,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
		chart.Overlap(scatter)
	}

	return chart.Render(w)
}
