package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/isobath/internal/bathy"
	"github.com/banshee-data/isobath/internal/monitoring"
	"github.com/banshee-data/isobath/internal/survey"
)

// contourMetadata is the JSON stored next to each line.
type contourMetadata struct {
	LayerType   string       `json:"layerType"`
	SurveyID    string       `json:"survey_id"`
	GeneratedAt string       `json:"generated_at"`
	Depth       float64      `json:"depth"`
	Params      bathy.Params `json:"parameters"`
}

// ReplaceContours implements survey.ContourStore. fn runs inside one
// transaction; each insert runs under its own savepoint so a rejected line
// does not poison the rest.
func (db *DB) ReplaceContours(ctx context.Context, surveyID string, fn func(survey.ContourWriter) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&contourTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit contours: %w", err)
	}
	return nil
}

type contourTx struct {
	tx *sql.Tx
}

func (c *contourTx) DeleteContoursForSurvey(ctx context.Context, surveyID string) (int64, error) {
	res, err := c.tx.ExecContext(ctx, `DELETE FROM contour_lines WHERE survey_id = ?`, surveyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete contours: %w", err)
	}
	return res.RowsAffected()
}

func (c *contourTx) InsertContourLine(ctx context.Context, line survey.ContourLine) (id int64, err error) {
	geom, err := geojson.NewGeometry(line.Geometry).MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("failed to encode geometry: %w", err)
	}
	meta, err := json.Marshal(contourMetadata{
		LayerType:   survey.LayerContour,
		SurveyID:    line.SurveyID,
		GeneratedAt: line.CreatedAt.UTC().Format(time.RFC3339),
		Depth:       line.Depth,
		Params:      line.Params,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode metadata: %w", err)
	}

	if _, err := c.tx.ExecContext(ctx, `SAVEPOINT contour_line`); err != nil {
		return 0, err
	}
	// SQLite keeps the savepoint on the stack after ROLLBACK TO, so it is
	// released on both paths.
	defer func() {
		if err != nil {
			if _, rbErr := c.tx.ExecContext(ctx, `ROLLBACK TO contour_line`); rbErr != nil {
				monitoring.Logf("db: rollback to savepoint failed: %v", rbErr)
			}
		}
		if _, relErr := c.tx.ExecContext(ctx, `RELEASE contour_line`); relErr != nil {
			monitoring.Logf("db: release savepoint failed: %v", relErr)
			if err == nil {
				id, err = 0, fmt.Errorf("failed to release savepoint: %w", relErr)
			}
		}
	}()

	fallback := 0
	if line.Fallback {
		fallback = 1
	}
	res, err := c.tx.ExecContext(ctx,
		`INSERT INTO contour_lines (survey_id, run_id, depth, fallback, geometry, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		line.SurveyID, line.RunID, line.Depth, fallback, string(geom), string(meta), line.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert contour at %.2f: %w", line.Depth, err)
	}
	return res.LastInsertId()
}

// ListContours implements survey.ContourStore.
func (db *DB) ListContours(ctx context.Context, surveyID string) ([]survey.ContourLine, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, survey_id, run_id, depth, fallback, geometry, metadata, created_at
		FROM contour_lines
		WHERE survey_id = ?
		ORDER BY depth, id`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contours: %w", err)
	}
	defer rows.Close()

	var lines []survey.ContourLine
	for rows.Next() {
		var (
			l         survey.ContourLine
			fallback  int
			geom      string
			meta      string
			createdAt int64
		)
		if err := rows.Scan(&l.ID, &l.SurveyID, &l.RunID, &l.Depth, &fallback, &geom, &meta, &createdAt); err != nil {
			return nil, err
		}
		g, err := geojson.UnmarshalGeometry([]byte(geom))
		if err != nil {
			return nil, fmt.Errorf("contour %d: bad geometry: %w", l.ID, err)
		}
		ls, ok := g.Geometry().(orb.LineString)
		if !ok {
			return nil, fmt.Errorf("contour %d: geometry is %s, want LineString", l.ID, g.Geometry().GeoJSONType())
		}
		var m contourMetadata
		if err := json.Unmarshal([]byte(meta), &m); err != nil {
			return nil, fmt.Errorf("contour %d: bad metadata: %w", l.ID, err)
		}
		l.Geometry = ls
		l.Fallback = fallback == 1
		l.Params = m.Params
		l.CreatedAt = time.Unix(createdAt, 0).UTC()
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
