package bathy

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MinSamples is the smallest number of finite soundings that can be contoured.
const MinSamples = 3

// Sample is one depth sounding. Z is treated as an ordinary scalar; the sign
// convention (positive down or negative down) is the caller's choice.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (s Sample) finite() bool {
	return isFinite(s.X) && isFinite(s.Y) && isFinite(s.Z)
}

// RawSample is a sounding as it arrives from a request body, a CSV row or a
// loosely typed query result. Each field may hold a number, a numeric string,
// or (for Depth only) nil.
type RawSample struct {
	X     any `json:"x"`
	Y     any `json:"y"`
	Depth any `json:"depth"`
}

// ParseSamples converts raw soundings to typed samples.
//
// An x or y value that is not a finite number fails the whole call with
// ErrInvalidCoordinate. An unreadable depth is not an error here: it becomes
// NaN and NewSampleSet filters it out, so one bad echo does not reject an
// otherwise usable survey.
func ParseSamples(raw []RawSample) ([]Sample, error) {
	out := make([]Sample, 0, len(raw))
	for i, r := range raw {
		x, err := toFloat(r.X)
		if err != nil || !isFinite(x) {
			return nil, fmt.Errorf("%w: sample %d: x=%v", ErrInvalidCoordinate, i, r.X)
		}
		y, err := toFloat(r.Y)
		if err != nil || !isFinite(y) {
			return nil, fmt.Errorf("%w: sample %d: y=%v", ErrInvalidCoordinate, i, r.Y)
		}
		z, err := toFloat(r.Depth)
		if err != nil {
			z = math.NaN()
		}
		out = append(out, Sample{X: x, Y: y, Z: z})
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return math.NaN(), fmt.Errorf("missing value")
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
	default:
		return math.NaN(), fmt.Errorf("unsupported type %T", v)
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// SampleSet is a validated, immutable collection of finite soundings for
// one survey.
type SampleSet struct {
	samples []Sample
	xs, ys  []float64
	zs      []float64
}

// NewSampleSet filters out non-finite soundings and checks that enough
// remain to contour.
func NewSampleSet(samples []Sample) (*SampleSet, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: got 0, need at least %d", ErrInsufficientSamples, MinSamples)
	}

	kept := make([]Sample, 0, len(samples))
	finiteDepths := 0
	for _, s := range samples {
		if isFinite(s.Z) {
			finiteDepths++
		}
		if s.finite() {
			kept = append(kept, s)
		}
	}

	if finiteDepths == 0 {
		return nil, fmt.Errorf("%w: all %d samples rejected", ErrNoFiniteDepths, len(samples))
	}
	if len(kept) < MinSamples {
		return nil, fmt.Errorf("%w: got %d finite, need at least %d", ErrInsufficientSamples, len(kept), MinSamples)
	}

	set := &SampleSet{
		samples: kept,
		xs:      make([]float64, len(kept)),
		ys:      make([]float64, len(kept)),
		zs:      make([]float64, len(kept)),
	}
	for i, s := range kept {
		set.xs[i] = s.X
		set.ys[i] = s.Y
		set.zs[i] = s.Z
	}
	return set, nil
}

// Len returns the number of usable samples.
func (s *SampleSet) Len() int { return len(s.samples) }

// Samples returns a copy of the usable samples.
func (s *SampleSet) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Depths returns a copy of the sample depths, in sample order.
func (s *SampleSet) Depths() []float64 {
	out := make([]float64, len(s.zs))
	copy(out, s.zs)
	return out
}

// DepthRange returns the minimum and maximum raw depth.
func (s *SampleSet) DepthRange() (min, max float64) {
	return floats.Min(s.zs), floats.Max(s.zs)
}

// Bounds returns the tight bounding box of the sample locations.
func (s *SampleSet) Bounds() BBox {
	return BBox{
		XMin: floats.Min(s.xs),
		XMax: floats.Max(s.xs),
		YMin: floats.Min(s.ys),
		YMax: floats.Max(s.ys),
	}
}

// Centroid returns the mean sample location.
func (s *SampleSet) Centroid() (x, y float64) {
	return stat.Mean(s.xs, nil), stat.Mean(s.ys, nil)
}
