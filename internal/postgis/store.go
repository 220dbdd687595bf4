// Package postgis stores survey samples and contours in a PostGIS
// spatial_features table, the layout used by the web GIS this engine
// serves.
package postgis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/isobath/internal/bathy"
	"github.com/banshee-data/isobath/internal/monitoring"
	"github.com/banshee-data/isobath/internal/survey"
)

// Store implements survey.SampleSource and survey.ContourStore.
type Store struct {
	db *sql.DB
}

// Open connects through the pgx database/sql driver and pings the server.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return New(db), nil
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const fetchSamplesSQL = `
	SELECT ST_X(geom), ST_Y(geom),
	       COALESCE(metadata->>'depth_value', metadata->>'kedalaman')
	FROM spatial_features
	WHERE layer_type = $1
	  AND (metadata->>'survey_id' = $2 OR survey_id = $2)
	ORDER BY id`

// FetchSamplesForSurvey returns the survey's valid sampling points. Depths
// are read as text so ParseSamples applies one conversion rule to every
// source; a point without any depth key gets a nil depth.
func (s *Store) FetchSamplesForSurvey(ctx context.Context, surveyID string) ([]bathy.RawSample, error) {
	rows, err := s.db.QueryContext(ctx, fetchSamplesSQL, survey.LayerSamplingPoint, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch samples: %w", err)
	}
	defer rows.Close()

	var out []bathy.RawSample
	for rows.Next() {
		var x, y float64
		var depth sql.NullString
		if err := rows.Scan(&x, &y, &depth); err != nil {
			return nil, err
		}
		r := bathy.RawSample{X: x, Y: y}
		if depth.Valid {
			r.Depth = depth.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// lineMetadata is the jsonb document stored with each contour feature.
type lineMetadata struct {
	LayerType   string       `json:"layerType"`
	SurveyID    string       `json:"survey_id"`
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Depth       float64      `json:"depth"`
	Fallback    bool         `json:"fallback,omitempty"`
	Params      bathy.Params `json:"parameters"`
}

// ReplaceContours runs fn in one transaction.
func (s *Store) ReplaceContours(ctx context.Context, surveyID string, fn func(survey.ContourWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&writer{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit contours: %w", err)
	}
	return nil
}

type writer struct {
	tx *sql.Tx
}

const deleteContoursSQL = `
	DELETE FROM spatial_features
	WHERE layer_type = $1 AND metadata->>'survey_id' = $2`

func (w *writer) DeleteContoursForSurvey(ctx context.Context, surveyID string) (int64, error) {
	res, err := w.tx.ExecContext(ctx, deleteContoursSQL, survey.LayerContour, surveyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete contours: %w", err)
	}
	return res.RowsAffected()
}

const insertContourSQL = `
	INSERT INTO spatial_features (geom, layer_type, metadata, created_at, updated_at)
	VALUES (ST_SetSRID(ST_GeomFromGeoJSON($1), 4326), $2, $3, NOW(), NOW())
	RETURNING id`

// InsertContourLine inserts under a savepoint: PostgreSQL aborts the whole
// transaction on any error unless it is rolled back to one.
func (w *writer) InsertContourLine(ctx context.Context, line survey.ContourLine) (id int64, err error) {
	geom, err := geojson.NewGeometry(line.Geometry).MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("failed to encode geometry: %w", err)
	}
	meta, err := json.Marshal(lineMetadata{
		LayerType:   survey.LayerContour,
		SurveyID:    line.SurveyID,
		RunID:       line.RunID,
		GeneratedAt: line.CreatedAt.UTC(),
		Depth:       line.Depth,
		Fallback:    line.Fallback,
		Params:      line.Params,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode metadata: %w", err)
	}

	if _, err := w.tx.ExecContext(ctx, "SAVEPOINT contour_line"); err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if _, rbErr := w.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT contour_line"); rbErr != nil {
				monitoring.Logf("postgis: rollback to savepoint failed: %v", rbErr)
			}
			return
		}
		if _, relErr := w.tx.ExecContext(ctx, "RELEASE SAVEPOINT contour_line"); relErr != nil {
			err = relErr
		}
	}()

	if err := w.tx.QueryRowContext(ctx, insertContourSQL, string(geom), survey.LayerContour, string(meta)).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert contour at %.2f: %w", line.Depth, err)
	}
	return id, nil
}

const listContoursSQL = `
	SELECT id, ST_AsGeoJSON(geom), metadata
	FROM spatial_features
	WHERE layer_type = $1 AND metadata->>'survey_id' = $2
	ORDER BY (metadata->>'depth')::float, id`

// ListContours returns the stored contour lines of a survey.
func (s *Store) ListContours(ctx context.Context, surveyID string) ([]survey.ContourLine, error) {
	rows, err := s.db.QueryContext(ctx, listContoursSQL, survey.LayerContour, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contours: %w", err)
	}
	defer rows.Close()

	var lines []survey.ContourLine
	for rows.Next() {
		var id int64
		var geom, meta []byte
		if err := rows.Scan(&id, &geom, &meta); err != nil {
			return nil, err
		}
		g, err := geojson.UnmarshalGeometry(geom)
		if err != nil {
			return nil, fmt.Errorf("contour %d: bad geometry: %w", id, err)
		}
		ls, ok := g.Geometry().(orb.LineString)
		if !ok {
			return nil, fmt.Errorf("contour %d: geometry is %s, want LineString", id, g.Geometry().GeoJSONType())
		}
		var m lineMetadata
		if err := json.Unmarshal(meta, &m); err != nil {
			return nil, fmt.Errorf("contour %d: bad metadata: %w", id, err)
		}
		lines = append(lines, survey.ContourLine{
			ID:        id,
			SurveyID:  m.SurveyID,
			RunID:     m.RunID,
			Depth:     m.Depth,
			Geometry:  ls,
			Fallback:  m.Fallback,
			Params:    m.Params,
			CreatedAt: m.GeneratedAt,
		})
	}
	return lines, rows.Err()
}
