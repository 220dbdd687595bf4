// Package render draws contour sets as static PNG plots and interactive
// HTML charts.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"slices"

	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/isobath/internal/bathy"
	"github.com/banshee-data/isobath/internal/survey"
)

// ErrNothingToDraw is returned for a set with no lines and no samples.
var ErrNothingToDraw = errors.New("nothing to draw")

// Default PNG size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 8 * vg.Inch
)

// Line is one polyline at a depth.
type Line struct {
	Depth    float64
	Points   orb.LineString
	Fallback bool
}

// Set is what gets drawn.
type Set struct {
	Title   string
	Lines   []Line
	Samples []bathy.Sample
}

// FromResult builds a set from an engine result and the samples it was
// generated from.
func FromResult(title string, res *bathy.GenerationResult, samples []bathy.Sample) Set {
	set := Set{Title: title, Samples: samples}
	for _, f := range res.Features {
		for _, ls := range f.Lines {
			set.Lines = append(set.Lines, Line{Depth: f.Level, Points: ls, Fallback: f.Fallback})
		}
	}
	return set
}

// FromStored builds a set from stored contour lines.
func FromStored(title string, lines []survey.ContourLine) Set {
	set := Set{Title: title}
	for _, l := range lines {
		set.Lines = append(set.Lines, Line{Depth: l.Depth, Points: l.Geometry, Fallback: l.Fallback})
	}
	return set
}

// Depths returns the distinct line depths, ascending.
func (s Set) Depths() []float64 {
	ds := make([]float64, 0, len(s.Lines))
	for _, l := range s.Lines {
		ds = append(ds, l.Depth)
	}
	slices.Sort(ds)
	return slices.Compact(ds)
}

func (s Set) empty() bool {
	return len(s.Lines) == 0 && len(s.Samples) == 0
}

// depthColors maps each depth onto a blue-red ramp, deepest first.
func depthColors(depths []float64) (map[float64]color.Color, error) {
	out := make(map[float64]color.Color, len(depths))
	if len(depths) == 0 {
		return out, nil
	}
	lo, hi := depths[0], depths[len(depths)-1]
	if lo == hi {
		out[lo] = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		return out, nil
	}
	cm := moreland.SmoothBlueRed()
	cm.SetMin(lo)
	cm.SetMax(hi)
	for _, d := range depths {
		c, err := cm.At(d)
		if err != nil {
			return nil, fmt.Errorf("colour for depth %.2f: %w", d, err)
		}
		out[d] = c
	}
	return out, nil
}

// PNG draws the set with gonum/plot and writes a PNG image to w.
func PNG(w io.Writer, set Set, width, height vg.Length) error {
	if set.empty() {
		return ErrNothingToDraw
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	p := plot.New()
	p.Title.Text = set.Title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Legend.Top = true

	if len(set.Samples) > 0 {
		pts := make(plotter.XYs, len(set.Samples))
		for i, s := range set.Samples {
			pts[i] = plotter.XY{X: s.X, Y: s.Y}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("failed to plot samples: %w", err)
		}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		sc.GlyphStyle.Color = color.Gray{Y: 128}
		p.Add(sc)
	}

	colors, err := depthColors(set.Depths())
	if err != nil {
		return err
	}
	labelled := make(map[float64]bool)
	for _, l := range set.Lines {
		if len(l.Points) < 2 {
			continue
		}
		pts := make(plotter.XYs, len(l.Points))
		for i, pt := range l.Points {
			pts[i] = plotter.XY{X: pt.X(), Y: pt.Y()}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to plot contour at %.2f: %w", l.Depth, err)
		}
		line.Color = colors[l.Depth]
		line.Width = vg.Points(1)
		if l.Fallback {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		if !labelled[l.Depth] {
			labelled[l.Depth] = true
			p.Legend.Add(depthLabel(l.Depth, l.Fallback), line)
		}
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func depthLabel(depth float64, fallback bool) string {
	if fallback {
		return fmt.Sprintf("%.2f m (approx.)", depth)
	}
	return fmt.Sprintf("%.2f m", depth)
}
