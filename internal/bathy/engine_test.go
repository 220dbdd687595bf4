package bathy

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ScenarioA(t *testing.T) {
	samples := []Sample{{0, 0, -1}, {10, 0, -2}, {5, 10, -3}}

	res, err := Generate(samples, DefaultOptions())
	require.NoError(t, err)

	assert.False(t, res.UsedFallback)
	assert.Equal(t, ModeVariable, res.Levels.Mode)
	assert.Equal(t, []float64{-3, -2, -1}, res.Levels.Levels)
	assert.Len(t, res.Features, 3, "one feature per level")
	assert.Equal(t, 3, res.PointCount)
	assert.Greater(t, res.TotalLines(), 0)
	assert.Equal(t, "variable", res.Params.Type)
	assert.Equal(t, []float64{-3, -1}, res.Params.DepthRange)

	nonEmpty := 0
	for i, f := range res.Features {
		assert.Equal(t, res.Levels.Levels[i], f.Level)
		assert.False(t, f.Fallback)
		if len(f.Lines) > 0 {
			nonEmpty++
		}
	}
	assert.GreaterOrEqual(t, nonEmpty, 1)
}

func TestGenerate_ScenarioB_HomogeneousFallsBack(t *testing.T) {
	samples := []Sample{
		{0, 0, -4.2},
		{4, 0, -4.2},
		{4, 4, -4.2},
		{0, 4, -4.2},
		{2, 2, -4.2},
	}

	res, err := Generate(samples, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, ModeHomogeneous, res.Levels.Mode)
	assert.Equal(t, []float64{-4.2}, res.Levels.Levels)
	require.True(t, res.UsedFallback)
	require.Len(t, res.Features, 1)

	f := res.Features[0]
	assert.True(t, f.Fallback)
	assert.Equal(t, -4.2, f.Level)
	require.Len(t, f.Lines, 1)
	ring := f.Lines[0]
	assert.Len(t, ring, FallbackSteps+1)
	assert.Equal(t, ring[0], ring[len(ring)-1])

	// Centred on (2, 2).
	var sx, sy float64
	for _, p := range ring[:FallbackSteps] {
		sx += p[0]
		sy += p[1]
	}
	assert.InDelta(t, 2, sx/FallbackSteps, 1e-9)
	assert.InDelta(t, 2, sy/FallbackSteps, 1e-9)

	assert.Equal(t, TypeFallback, res.Params.Type)
	require.NotNil(t, res.Params.Depth)
	assert.Equal(t, -4.2, *res.Params.Depth)
}

func TestGenerate_ScenarioC_NaNDropped(t *testing.T) {
	samples := []Sample{{0, 0, -1}, {10, 0, math.NaN()}, {10, 10, -2}, {0, 10, -3}}

	res, err := Generate(samples, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, res.PointCount)
	assert.Equal(t, 1, res.Discarded)
}

func TestGenerate_ScenarioD_Empty(t *testing.T) {
	_, err := Generate(nil, DefaultOptions())
	assert.True(t, errors.Is(err, ErrInsufficientSamples), "got %v", err)
	assert.True(t, IsClientError(err))
}

func TestGenerate_MinimumSampleGuard(t *testing.T) {
	two := []Sample{{0, 0, -1}, {1, 0, -2}}
	_, err := Generate(two, DefaultOptions())
	assert.ErrorIs(t, err, ErrInsufficientSamples)

	three := append(two, Sample{0, 1, -3})
	_, err = Generate(three, DefaultOptions())
	assert.NoError(t, err)
}

func TestGenerate_NoFiniteDepths(t *testing.T) {
	nan := math.NaN()
	_, err := Generate([]Sample{{0, 0, nan}, {1, 0, nan}, {0, 1, nan}}, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoFiniteDepths)
}

func TestGenerate_FallbackWhenLevelsNeverCross(t *testing.T) {
	samples := []Sample{{0, 0, -1}, {10, 0, -2}, {5, 10, -3}}
	opts := DefaultOptions()
	opts.Levels = []float64{-100}

	res, err := Generate(samples, opts)
	require.NoError(t, err)
	assert.Equal(t, ModeForced, res.Levels.Mode)
	require.True(t, res.UsedFallback)
	require.Len(t, res.Features, 1)
	require.Len(t, res.Features[0].Lines, 1)
	assert.Len(t, res.Features[0].Lines[0], 17)
	// Not homogeneous: the ring sits at the midpoint depth.
	assert.Equal(t, -2.0, res.Features[0].Level)
}

func TestGenerate_Idempotent(t *testing.T) {
	samples := []Sample{
		{104.70, -2.95, -3.1},
		{104.71, -2.96, -5.4},
		{104.72, -2.94, -7.9},
		{104.705, -2.97, -4.4},
		{104.715, -2.945, -6.25},
	}
	opts := DefaultOptions()
	opts.Interval = 0.5

	first, err := Generate(samples, opts)
	require.NoError(t, err)
	second, err := Generate(samples, opts)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Generate() not deterministic (-first +second):\n%s", diff)
	}
	assert.False(t, first.UsedFallback)
}

func TestGenerate_InternalFailureIsWrapped(t *testing.T) {
	orig := interpolate
	defer func() { interpolate = orig }()
	interpolate = func([]Sample, BBox, int, int, float64) *Grid {
		panic(errors.New("grid exploded"))
	}

	_, err := Generate([]Sample{{0, 0, -1}, {10, 0, -2}, {5, 10, -3}}, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContourGenerationFailed)
	assert.Contains(t, err.Error(), "grid exploded")
	assert.False(t, IsClientError(err))
}

func TestGenerate_Logging(t *testing.T) {
	var ops, diag bytes.Buffer
	SetLogWriters(&ops, &diag, nil)
	defer SetLogWriters(nil, nil, nil)

	samples := []Sample{{0, 0, -4.2}, {1, 0, -4.2}, {0, 1, -4.2}}
	_, err := Generate(samples, DefaultOptions())
	require.NoError(t, err)

	assert.Contains(t, diag.String(), "homogeneous")
	assert.Contains(t, ops.String(), "fallback ring")
}

func TestOptions_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		in       Options
		interval float64
		grid     int
	}{
		{"defaults for zero", Options{}, 1.0, 100},
		{"interval clamped low", Options{Interval: 0.01, GridResolution: 100}, 0.1, 100},
		{"interval clamped high", Options{Interval: 50, GridResolution: 100}, 10, 100},
		{"NaN interval", Options{Interval: math.NaN(), GridResolution: 100}, 1.0, 100},
		{"grid clamped low", Options{Interval: 1, GridResolution: 10}, 1, 50},
		{"grid clamped high", Options{Interval: 1, GridResolution: 1000}, 1, 300},
		{
			"custom limits",
			Options{Interval: 0.01, GridResolution: 20, Limits: Limits{MinInterval: 0.05, MaxInterval: 2, MinGridResolution: 10, MaxGridResolution: 40}},
			0.05, 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.interval, got.Interval)
			assert.Equal(t, tt.grid, got.GridResolution)
			assert.Equal(t, DefaultPower, got.Power)
		})
	}
}

func TestGenerationResult_FeatureCollection(t *testing.T) {
	res, err := Generate([]Sample{{0, 0, -1}, {10, 0, -2}, {5, 10, -3}}, DefaultOptions())
	require.NoError(t, err)

	data, err := json.Marshal(res.FeatureCollection())
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, `"MultiLineString"`)
	assert.Contains(t, body, `"depth":-2`)

	fb, err := Generate([]Sample{{0, 0, -4.2}, {1, 0, -4.2}, {0, 1, -4.2}}, DefaultOptions())
	require.NoError(t, err)
	data, err = json.Marshal(fb.FeatureCollection())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"Polygon"`), "fallback should encode as Polygon: %s", data)
	assert.Contains(t, string(data), `"fallback":true`)
}
