package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrSurveyNotFound is returned when a survey id does not exist.
var ErrSurveyNotFound = errors.New("survey not found")

// Survey groups the sampling points of one echosounder campaign.
type Survey struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateSurvey inserts a survey, assigning a new id when s.ID is empty.
func (db *DB) CreateSurvey(ctx context.Context, s *Survey) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("survey name is required")
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	var createdAt, updatedAt int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO surveys (id, name, description) VALUES (?, ?, ?)
		 RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Description,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return fmt.Errorf("failed to create survey: %w", err)
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return nil
}

// GetSurvey retrieves a survey by id.
func (db *DB) GetSurvey(ctx context.Context, id string) (*Survey, error) {
	var s Survey
	var createdAt, updatedAt int64
	err := db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM surveys WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.Description, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSurveyNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get survey: %w", err)
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &s, nil
}

// ListSurveys returns every survey, oldest first.
func (db *DB) ListSurveys(ctx context.Context) ([]Survey, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM surveys ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}
	defer rows.Close()

	var surveys []Survey
	for rows.Next() {
		var s Survey
		var createdAt, updatedAt int64
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		surveys = append(surveys, s)
	}
	return surveys, rows.Err()
}

// DeleteSurvey removes a survey together with its samples and contours.
func (db *DB) DeleteSurvey(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM surveys WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete survey: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSurveyNotFound, id)
	}
	return nil
}
