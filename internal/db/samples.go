package db

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/banshee-data/isobath/internal/bathy"
)

// SamplingPoint is one stored sounding. Depth is nil when the echosounder
// reported none; some imports carry the depth only in Metadata under
// depth_value or kedalaman.
type SamplingPoint struct {
	ID       int64          `json:"id"`
	SurveyID string         `json:"survey_id"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Depth    *float64       `json:"depth"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// InsertSamples stores points for a survey in one transaction and returns
// how many were written. Non-finite coordinates are rejected.
func (db *DB) InsertSamples(ctx context.Context, surveyID string, points []SamplingPoint) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sampling_points (survey_id, x, y, depth, metadata) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range points {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return 0, fmt.Errorf("point %d: %w", i, bathy.ErrInvalidCoordinate)
		}
		var depth any
		if p.Depth != nil && !math.IsNaN(*p.Depth) && !math.IsInf(*p.Depth, 0) {
			depth = *p.Depth
		}
		meta := []byte("{}")
		if len(p.Metadata) > 0 {
			if meta, err = json.Marshal(p.Metadata); err != nil {
				return 0, fmt.Errorf("point %d: failed to encode metadata: %w", i, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, surveyID, p.X, p.Y, depth, string(meta)); err != nil {
			return 0, fmt.Errorf("failed to insert point %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit samples: %w", err)
	}
	return len(points), nil
}

// ListSamples returns the stored points of a survey in insertion order.
func (db *DB) ListSamples(ctx context.Context, surveyID string) ([]SamplingPoint, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, survey_id, x, y, depth, metadata FROM sampling_points WHERE survey_id = ? ORDER BY id`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	var points []SamplingPoint
	for rows.Next() {
		var p SamplingPoint
		var meta string
		if err := rows.Scan(&p.ID, &p.SurveyID, &p.X, &p.Y, &p.Depth, &meta); err != nil {
			return nil, err
		}
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &p.Metadata); err != nil {
				return nil, fmt.Errorf("point %d: bad metadata: %w", p.ID, err)
			}
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// FetchSamplesForSurvey implements survey.SampleSource. The depth is taken
// from metadata.depth_value, then metadata.kedalaman, then the depth
// column. A point with none of them yields a nil depth, which the engine
// discards rather than treating as zero.
func (db *DB) FetchSamplesForSurvey(ctx context.Context, surveyID string) ([]bathy.RawSample, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT x, y, COALESCE(
			json_extract(metadata, '$.depth_value'),
			json_extract(metadata, '$.kedalaman'),
			depth
		)
		FROM sampling_points
		WHERE survey_id = ?
		ORDER BY id`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch samples: %w", err)
	}
	defer rows.Close()

	var out []bathy.RawSample
	for rows.Next() {
		var x, y float64
		var depth any
		if err := rows.Scan(&x, &y, &depth); err != nil {
			return nil, err
		}
		out = append(out, bathy.RawSample{X: x, Y: y, Depth: depth})
	}
	return out, rows.Err()
}
