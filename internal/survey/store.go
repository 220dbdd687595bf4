// Package survey regenerates and stores the bathymetric contours of a
// survey. It owns the collaborator interfaces that the SQLite and PostGIS
// stores implement.
package survey

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/isobath/internal/bathy"
)

// Layer types used by stores that keep samples and contours in one
// feature table.
const (
	LayerSamplingPoint = "valid_sampling_point"
	LayerContour       = "kontur_batimetri"
)

// ErrNoSamples is returned when a survey has no sampling points at all.
var ErrNoSamples = errors.New("no sampling points for survey")

// ErrNothingStored is returned when every contour line of a run failed to
// insert. The replace is rolled back so the previous run stays visible.
var ErrNothingStored = errors.New("no contour lines could be stored")

// SampleSource loads the raw soundings of a survey.
type SampleSource interface {
	FetchSamplesForSurvey(ctx context.Context, surveyID string) ([]bathy.RawSample, error)
}

// ContourLine is one stored contour polyline.
type ContourLine struct {
	ID        int64          `json:"id"`
	SurveyID  string         `json:"survey_id"`
	RunID     string         `json:"run_id"`
	Depth     float64        `json:"depth"`
	Geometry  orb.LineString `json:"geometry"`
	Fallback  bool           `json:"fallback"`
	Params    bathy.Params   `json:"parameters"`
	CreatedAt time.Time      `json:"created_at"`
}

// ContourWriter is the write side of a contour transaction.
type ContourWriter interface {
	// DeleteContoursForSurvey removes every stored line of the survey and
	// returns how many were removed.
	DeleteContoursForSurvey(ctx context.Context, surveyID string) (int64, error)
	// InsertContourLine stores one line and returns its id. A failed insert
	// leaves the transaction usable for the remaining lines.
	InsertContourLine(ctx context.Context, line ContourLine) (int64, error)
}

// ContourStore persists contour lines.
type ContourStore interface {
	// ReplaceContours runs fn inside one transaction. If fn returns an
	// error nothing it wrote is kept and the previous contours survive.
	ReplaceContours(ctx context.Context, surveyID string, fn func(ContourWriter) error) error
	ListContours(ctx context.Context, surveyID string) ([]ContourLine, error)
}

// Lines flattens an engine result into storable lines. Every polyline of a
// level becomes its own line; the fallback ring is stored as its outer
// LineString.
func Lines(surveyID, runID string, res *bathy.GenerationResult, now time.Time) []ContourLine {
	var out []ContourLine
	for _, f := range res.Features {
		for _, ls := range f.Lines {
			out = append(out, ContourLine{
				SurveyID:  surveyID,
				RunID:     runID,
				Depth:     f.Level,
				Geometry:  ls,
				Fallback:  f.Fallback,
				Params:    res.Params,
				CreatedAt: now,
			})
		}
	}
	return out
}

// FeatureCollection renders stored lines as GeoJSON, one LineString
// feature per line.
func FeatureCollection(lines []ContourLine) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, l := range lines {
		f := geojson.NewFeature(l.Geometry)
		if l.ID != 0 {
			f.ID = l.ID
		}
		f.Properties["layerType"] = LayerContour
		f.Properties["survey_id"] = l.SurveyID
		f.Properties["run_id"] = l.RunID
		f.Properties["depth"] = l.Depth
		f.Properties["parameters"] = l.Params
		if l.Fallback {
			f.Properties["fallback"] = true
		}
		fc.Append(f)
	}
	return fc
}
