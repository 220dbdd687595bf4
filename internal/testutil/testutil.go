// Package testutil provides shared test fixtures and helpers.
package testutil

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/banshee-data/isobath/internal/bathy"
)

// SlopeSamples returns a 5x5 survey near Palembang whose depth deepens
// from -1 m in the west to -9 m in the east.
func SlopeSamples() []bathy.Sample {
	var out []bathy.Sample
	for row := 0; row < 5; row++ {
		for col := 0; col < 5; col++ {
			out = append(out, bathy.Sample{
				X: 104.70 + float64(col)*0.005,
				Y: -2.98 + float64(row)*0.005,
				Z: -1 - 2*float64(col),
			})
		}
	}
	return out
}

// FlatSamples returns n samples at the same depth on a 3-column grid.
func FlatSamples(n int, depth float64) []bathy.Sample {
	out := make([]bathy.Sample, n)
	for i := range out {
		out[i] = bathy.Sample{X: 104.7 + 0.001*float64(i%3), Y: -2.9 + 0.001*float64(i/3), Z: depth}
	}
	return out
}

// Raw converts samples to the untyped form used by stores and the API.
func Raw(samples []bathy.Sample) []bathy.RawSample {
	out := make([]bathy.RawSample, len(samples))
	for i, s := range samples {
		out[i] = bathy.RawSample{X: s.X, Y: s.Y, Depth: s.Z}
	}
	return out
}

// CSV renders samples as an echosounder CSV with lon,lat,depth columns.
func CSV(samples []bathy.Sample) string {
	var b strings.Builder
	b.WriteString("lon,lat,depth\n")
	for _, s := range samples {
		fmt.Fprintf(&b, "%g,%g,%g\n", s.X, s.Y, s.Z)
	}
	return b.String()
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d (%s), want %d", got, http.StatusText(got), want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
