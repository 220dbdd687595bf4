package bathy

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"
)

// FallbackSteps is the number of angular steps in the fallback ring. The
// ring has FallbackSteps+1 vertices, the last repeating the first.
const FallbackSteps = 16

// FallbackRing builds the synthetic contour used when tracing produced no
// lines: a closed circle around the sample centroid whose radius is the
// mean centroid-to-sample distance. The result is an approximation, not a
// data-driven contour.
func FallbackRing(samples []Sample, depth float64) (ContourFeature, error) {
	if len(samples) == 0 {
		return ContourFeature{}, fmt.Errorf("%w: no samples", ErrFallbackImpossible)
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i], ys[i] = s.X, s.Y
	}
	cx, cy := stat.Mean(xs, nil), stat.Mean(ys, nil)
	if !isFinite(cx) || !isFinite(cy) {
		return ContourFeature{}, fmt.Errorf("%w: centroid is not finite", ErrFallbackImpossible)
	}

	dists := make([]float64, len(samples))
	for i, s := range samples {
		dists[i] = math.Hypot(s.X-cx, s.Y-cy)
	}
	radius := stat.Mean(dists, nil)
	if !isFinite(radius) {
		return ContourFeature{}, fmt.Errorf("%w: radius is not finite", ErrFallbackImpossible)
	}

	ring := make(orb.LineString, 0, FallbackSteps+1)
	for i := 0; i < FallbackSteps; i++ {
		angle := float64(i) * 2 * math.Pi / FallbackSteps
		ring = append(ring, orb.Point{cx + radius*math.Cos(angle), cy + radius*math.Sin(angle)})
	}
	ring = append(ring, ring[0])

	return ContourFeature{
		Level:    depth,
		Lines:    orb.MultiLineString{ring},
		Fallback: true,
	}, nil
}
