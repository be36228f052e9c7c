package offdays

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
)

// OffDay is an explicit closure of one school on one date
type OffDay struct {
	ID        string        `json:"id"`
	SchoolID  string        `json:"schoolId"`
	Date      calendar.Date `json:"date"`
	Reason    string        `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Store persists off-days
type Store interface {
	// InsertDates stores dates for a school, skipping existing ones, and
	// returns how many rows were created
	InsertDates(ctx context.Context, schoolID string, dates []calendar.Date, reason string) (int, error)
	// Delete removes an off-day and returns its school
	Delete(ctx context.Context, id string) (string, error)
	ListRange(ctx context.Context, schoolID string, start, end calendar.Date) ([]OffDay, error)
	ListSchoolIDs(ctx context.Context) ([]string, error)
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// InsertDates stores all dates in one statement
func (s *PostgresStore) InsertDates(ctx context.Context, schoolID string, dates []calendar.Date, reason string) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	ids := make([]string, len(dates))
	days := make([]string, len(dates))
	for i, d := range dates {
		ids[i] = uuid.NewString()
		days[i] = d.String()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO off_days (id, school_id, date, reason)
		SELECT u.id, $1, u.day::date, $4
		FROM unnest($2::text[], $3::text[]) AS u(id, day)
		ON CONFLICT (school_id, date) DO NOTHING
	`, schoolID, pq.Array(ids), pq.Array(days), reason)
	if err != nil {
		return 0, fmt.Errorf("failed to insert off-days: %w", err)
	}
	created, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(created), nil
}

// Delete removes an off-day
func (s *PostgresStore) Delete(ctx context.Context, id string) (string, error) {
	var schoolID string
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM off_days WHERE id = $1 RETURNING school_id`, id).Scan(&schoolID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NotFound("Off-day not found")
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete off-day: %w", err)
	}
	return schoolID, nil
}

// ListRange returns the off-days of a school in an inclusive range
func (s *PostgresStore) ListRange(ctx context.Context, schoolID string, start, end calendar.Date) ([]OffDay, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, school_id, date, reason, created_at
		FROM off_days
		WHERE school_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, schoolID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list off-days: %w", err)
	}
	defer rows.Close()

	var days []OffDay
	for rows.Next() {
		var d OffDay
		if err := rows.Scan(&d.ID, &d.SchoolID, &d.Date, &d.Reason, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan off-day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate off-days: %w", err)
	}
	return days, nil
}

// ListSchoolIDs returns the ids of all active schools
func (s *PostgresStore) ListSchoolIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM schools WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schools: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan school: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schools: %w", err)
	}
	return ids, nil
}
