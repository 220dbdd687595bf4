package bathy

import (
	"math"
	"slices"
)

// LevelMode says how a LevelSet was chosen.
type LevelMode string

const (
	// ModeHomogeneous means every depth rounds to the same value at
	// millimetre precision; the set holds that single depth.
	ModeHomogeneous LevelMode = "homogeneous"
	// ModeVariable means levels were stepped across the depth range.
	ModeVariable LevelMode = "variable"
	// ModeForced means the caller supplied the levels (Options.Levels).
	ModeForced LevelMode = "forced"
)

// Precision used by the homogeneity test and by emitted levels.
const (
	homogeneityDecimals = 3
	levelDecimals       = 2
	// levelClipMargin is how far outside [minZ, maxZ] a level may sit.
	levelClipMargin = 0.1
	// minLevelBuffer is the lower bound of the sweep padding.
	minLevelBuffer = 0.5
)

// LevelSet is a non-empty, strictly increasing list of contour depths.
type LevelSet struct {
	Mode     LevelMode `json:"mode"`
	Levels   []float64 `json:"levels"`
	MinDepth float64   `json:"min_depth"`
	MaxDepth float64   `json:"max_depth"`
}

// Homogeneous reports whether the set came from indistinguishable depths.
func (ls LevelSet) Homogeneous() bool { return ls.Mode == ModeHomogeneous }

// forcedLevels builds a LevelSet from caller-supplied depths: non-finite
// values are dropped, the rest sorted and de-duplicated.
func forcedLevels(levels []float64, minZ, maxZ float64) LevelSet {
	ls := LevelSet{Mode: ModeForced, MinDepth: minZ, MaxDepth: maxZ}
	sorted := make([]float64, 0, len(levels))
	for _, l := range levels {
		if isFinite(l) {
			sorted = append(sorted, l)
		}
	}
	slices.Sort(sorted)
	ls.Levels = slices.Compact(sorted)
	return ls
}

// IsHomogeneous rounds every depth to three decimals and reports whether a
// single distinct value remains. The rounded value is returned when it does.
func IsHomogeneous(depths []float64) (float64, bool) {
	if len(depths) == 0 {
		return 0, false
	}
	first := roundTo(depths[0], homogeneityDecimals)
	for _, d := range depths[1:] {
		if roundTo(d, homogeneityDecimals) != first {
			return 0, false
		}
	}
	return first, true
}

// SelectLevels picks the depths to contour. interval must already be
// clamped (see Options.Normalize).
//
// Variable case: the sweep starts at floor((minZ-buffer)/interval)*interval
// and steps by interval until it passes maxZ+buffer, where
// buffer = max(interval/2, 0.5). Only levels inside [minZ-0.1, maxZ+0.1]
// are kept. If none survive, the midpoint of the range is used.
func SelectLevels(set *SampleSet, interval float64) LevelSet {
	minZ, maxZ := set.DepthRange()
	ls := LevelSet{MinDepth: minZ, MaxDepth: maxZ}

	if depth, ok := IsHomogeneous(set.zs); ok {
		ls.Mode = ModeHomogeneous
		ls.Levels = []float64{depth}
		return ls
	}

	ls.Mode = ModeVariable
	buffer := math.Max(interval/2, minLevelBuffer)
	lo, hi := minZ-levelClipMargin, maxZ+levelClipMargin
	start := math.Floor((minZ-buffer)/interval) * interval
	stop := maxZ + buffer

	// Stepping by k*interval instead of accumulating avoids drift.
	for k := 0; ; k++ {
		current := start + float64(k)*interval
		if current > stop {
			break
		}
		level := roundTo(current, levelDecimals)
		if level < lo || level > hi {
			continue
		}
		if n := len(ls.Levels); n > 0 && level <= ls.Levels[n-1] {
			continue
		}
		ls.Levels = append(ls.Levels, level)
	}

	if len(ls.Levels) == 0 {
		ls.Levels = []float64{roundTo((minZ+maxZ)/2, levelDecimals)}
	}
	return ls
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	r := math.Round(v*p) / p
	if r == 0 {
		// normalise -0 so equal depths compare and print the same
		return 0
	}
	return r
}
