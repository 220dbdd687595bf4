package bathy

import "math"

// coincidentEpsilon is the distance below which a grid node is treated as
// sitting exactly on a sample.
const coincidentEpsilon = 1e-8

// BBox is an axis-aligned bounding box in sample coordinates.
type BBox struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// WorldX maps a (possibly fractional) column index to an x coordinate.
// Column 0 is XMin and column width-1 is XMax.
func (b BBox) WorldX(i float64, width int) float64 {
	if width < 2 {
		return b.XMin
	}
	return b.XMin + (b.XMax-b.XMin)*i/float64(width-1)
}

// WorldY maps a (possibly fractional) row index to a y coordinate.
func (b BBox) WorldY(j float64, height int) float64 {
	if height < 2 {
		return b.YMin
	}
	return b.YMin + (b.YMax-b.YMin)*j/float64(height-1)
}

// Grid is a dense depth surface. Values are row-major: row j runs along x
// at y = WorldY(j).
type Grid struct {
	Width  int
	Height int
	BBox   BBox
	Values []float64
}

// At returns the value at the given row and column.
func (g *Grid) At(row, col int) float64 {
	return g.Values[row*g.Width+col]
}

// Range returns the smallest and largest grid value.
func (g *Grid) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// IDW returns the inverse-distance-weighted depth at (x, y). A sample closer
// than 1e-8 is returned exactly. With no usable weight the result is 0.
func IDW(x, y float64, samples []Sample, power float64) float64 {
	v, _ := idw(x, y, samples, power)
	return v
}

// idw reports ok=false only when no sample contributed any weight.
func idw(x, y float64, samples []Sample, power float64) (float64, bool) {
	var weightedSum, weightSum float64
	for _, s := range samples {
		dx := x - s.X
		dy := y - s.Y
		dist := math.Sqrt(dx*dx + dy*dy)
		if dist < coincidentEpsilon {
			return s.Z, true
		}
		w := 1 / math.Pow(dist, power)
		weightedSum += w * s.Z
		weightSum += w
	}

	if weightSum > 0 {
		return weightedSum / weightSum, true
	}
	return 0, false
}

// Interpolate builds a width x height IDW grid over bbox.
//
// Each weighted value is clamped to the sample depth range. IDW is a convex
// combination, so the clamp only removes round-off; it guarantees that a
// flat survey produces an exactly flat grid. Nodes with no usable weight
// stay at 0.
func Interpolate(samples []Sample, bbox BBox, width, height int, power float64) *Grid {
	g := &Grid{
		Width:  width,
		Height: height,
		BBox:   bbox,
		Values: make([]float64, width*height),
	}
	if len(samples) == 0 {
		return g
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		lo = math.Min(lo, s.Z)
		hi = math.Max(hi, s.Z)
	}

	for j := 0; j < height; j++ {
		y := bbox.WorldY(float64(j), height)
		row := g.Values[j*width : (j+1)*width]
		for i := range row {
			x := bbox.WorldX(float64(i), width)
			v, ok := idw(x, y, samples, power)
			if ok {
				v = math.Max(lo, math.Min(hi, v))
			}
			row[i] = v
		}
	}
	return g
}
