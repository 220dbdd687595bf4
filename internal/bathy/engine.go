package bathy

import "fmt"

// interpolate is swapped in tests to exercise the failure path.
var interpolate = Interpolate

// TypeFallback is the Params.Type of a fallback result. Other results carry
// their LevelMode.
const TypeFallback = "fallback_manual"

// Params is the generation metadata stored alongside every contour line.
type Params struct {
	Type           string    `json:"type"`
	Depth          *float64  `json:"depth,omitempty"`
	Levels         []float64 `json:"levels,omitempty"`
	DepthRange     []float64 `json:"depthRange,omitempty"`
	Interval       float64   `json:"interval"`
	GridResolution int       `json:"gridResolution"`
	PointCount     int       `json:"pointCount"`
}

// GenerationResult is the output of one Generate call.
type GenerationResult struct {
	Features     []ContourFeature `json:"features"`
	UsedFallback bool             `json:"used_fallback"`
	Levels       LevelSet         `json:"levels"`
	PointCount   int              `json:"point_count"`
	// Discarded counts input samples dropped for non-finite values.
	Discarded int     `json:"discarded"`
	Options   Options `json:"options"`
	Params    Params  `json:"parameters"`
}

// TotalLines returns the number of polylines across all features.
func (r *GenerationResult) TotalLines() int {
	return CountLines(r.Features)
}

// Generate contours a set of soundings.
//
// Validation errors (ErrInsufficientSamples, ErrNoFiniteDepths) are returned
// unchanged. A failure inside interpolation or tracing, including a panic,
// is returned wrapped in ErrContourGenerationFailed. When tracing succeeds
// but yields no lines, a single fallback ring replaces the features and
// UsedFallback is set.
func Generate(samples []Sample, opts Options) (*GenerationResult, error) {
	opts = opts.Normalize()

	set, err := NewSampleSet(samples)
	if err != nil {
		return nil, err
	}

	minZ, maxZ := set.DepthRange()
	var levels LevelSet
	if len(opts.Levels) > 0 {
		levels = forcedLevels(opts.Levels, minZ, maxZ)
	}
	if len(levels.Levels) == 0 {
		levels = SelectLevels(set, opts.Interval)
	}
	diagf("depth %.2f -> %.2f, %s levels %v (grid %dx%d, %d points)",
		minZ, maxZ, levels.Mode, levels.Levels, opts.GridResolution, opts.GridResolution, set.Len())

	features, err := traceSet(set, levels.Levels, opts)
	if err != nil {
		opsf("tracing failed: %v", err)
		return nil, err
	}

	res := &GenerationResult{
		Features:   features,
		Levels:     levels,
		PointCount: set.Len(),
		Discarded:  len(samples) - set.Len(),
		Options:    opts,
		Params: Params{
			Type:           string(levels.Mode),
			Levels:         levels.Levels,
			DepthRange:     []float64{minZ, maxZ},
			Interval:       opts.Interval,
			GridResolution: opts.GridResolution,
			PointCount:     set.Len(),
		},
	}
	if levels.Homogeneous() {
		d := levels.Levels[0]
		res.Params.Depth = &d
		res.Params.Levels = nil
		res.Params.DepthRange = nil
	}

	if CountLines(features) > 0 {
		diagf("traced %d lines over %d levels", res.TotalLines(), len(features))
		return res, nil
	}

	depth := fallbackDepth(set)
	ring, err := FallbackRing(set.samples, depth)
	if err != nil {
		opsf("fallback failed: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrContourGenerationFailed, err)
	}
	opsf("no contour lines traced at %v, using fallback ring at depth %.2f", levels.Levels, depth)

	res.Features = []ContourFeature{ring}
	res.UsedFallback = true
	res.Params = Params{
		Type:           TypeFallback,
		Depth:          &depth,
		Interval:       opts.Interval,
		GridResolution: opts.GridResolution,
		PointCount:     set.Len(),
	}
	return res, nil
}

// traceSet interpolates the grid and traces every level. Panics from below
// are converted to ErrContourGenerationFailed so a crash is never mistaken
// for "no contours".
func traceSet(set *SampleSet, levels []float64, opts Options) (features []ContourFeature, err error) {
	defer func() {
		if r := recover(); r != nil {
			features = nil
			if cause, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w", ErrContourGenerationFailed, cause)
				return
			}
			err = fmt.Errorf("%w: %v", ErrContourGenerationFailed, r)
		}
	}()

	grid := interpolate(set.samples, set.Bounds(), opts.GridResolution, opts.GridResolution, opts.Power)
	if lo, hi := grid.Range(); lo <= hi {
		tracef("grid %dx%d range %.3f -> %.3f", grid.Width, grid.Height, lo, hi)
	}
	return Extract(grid, levels, opts.GeographicBounds), nil
}

// fallbackDepth is the homogeneous depth, or the midpoint of the depth
// range rounded to centimetres.
func fallbackDepth(set *SampleSet) float64 {
	if d, ok := IsHomogeneous(set.zs); ok {
		return d
	}
	minZ, maxZ := set.DepthRange()
	return roundTo((minZ+maxZ)/2, levelDecimals)
}
