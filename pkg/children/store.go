package children

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/storage/postgres"
)

// Store persists children and reads schools
type Store interface {
	GetSchool(ctx context.Context, id string) (*School, error)
	ListSchools(ctx context.Context) ([]School, error)
	Create(ctx context.Context, c *Child) error
	Update(ctx context.Context, c *Child) error
	Get(ctx context.Context, id string) (*Child, error)
	ListByParent(ctx context.Context, parentID string) ([]*Child, error)
	Delete(ctx context.Context, id, parentID string) error
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const childColumns = `c.id, c.parent_id, c.school_id, s.name, c.first_name, c.last_name, c.grade,
		       c.allergies, c.bread_type, c.crust, c.butter, c.created_at, c.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChild(row rowScanner) (*Child, error) {
	c := &Child{}
	err := row.Scan(&c.ID, &c.ParentID, &c.SchoolID, &c.SchoolName, &c.FirstName, &c.LastName, &c.Grade,
		&c.Preferences.Allergies, &c.Preferences.BreadType, &c.Preferences.Crust, &c.Preferences.Butter,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetSchool returns an active school
func (s *PostgresStore) GetSchool(ctx context.Context, id string) (*School, error) {
	school := &School{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, address FROM schools WHERE id = $1 AND is_active`, id,
	).Scan(&school.ID, &school.Name, &school.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("School not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get school: %w", err)
	}
	return school, nil
}

// ListSchools returns the active schools ordered by name
func (s *PostgresStore) ListSchools(ctx context.Context) ([]School, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, address FROM schools WHERE is_active ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schools: %w", err)
	}
	defer rows.Close()

	var schools []School
	for rows.Next() {
		var school School
		if err := rows.Scan(&school.ID, &school.Name, &school.Address); err != nil {
			return nil, fmt.Errorf("failed to scan school: %w", err)
		}
		schools = append(schools, school)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schools: %w", err)
	}
	return schools, nil
}

// Create inserts a new child
func (s *PostgresStore) Create(ctx context.Context, c *Child) error {
	query := `
		INSERT INTO children (id, parent_id, school_id, first_name, last_name, grade,
		                      allergies, bread_type, crust, butter)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		c.ID, c.ParentID, c.SchoolID, c.FirstName, c.LastName, c.Grade,
		c.Preferences.Allergies, c.Preferences.BreadType, c.Preferences.Crust, c.Preferences.Butter,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create child: %w", err)
	}
	return nil
}

// Update writes every editable field of a child owned by c.ParentID
func (s *PostgresStore) Update(ctx context.Context, c *Child) error {
	query := `
		UPDATE children
		SET school_id = $1, first_name = $2, last_name = $3, grade = $4,
		    allergies = $5, bread_type = $6, crust = $7, butter = $8, updated_at = NOW()
		WHERE id = $9 AND parent_id = $10
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		c.SchoolID, c.FirstName, c.LastName, c.Grade,
		c.Preferences.Allergies, c.Preferences.BreadType, c.Preferences.Crust, c.Preferences.Butter,
		c.ID, c.ParentID,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("Child not found")
	}
	if err != nil {
		return fmt.Errorf("failed to update child: %w", err)
	}
	return nil
}

// Get returns a child with its school name
func (s *PostgresStore) Get(ctx context.Context, id string) (*Child, error) {
	query := `
		SELECT ` + childColumns + `
		FROM children c
		JOIN schools s ON s.id = c.school_id
		WHERE c.id = $1
	`
	c, err := scanChild(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("Child not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return c, nil
}

// ListByParent returns a parent's children ordered by first name
func (s *PostgresStore) ListByParent(ctx context.Context, parentID string) ([]*Child, error) {
	query := `
		SELECT ` + childColumns + `
		FROM children c
		JOIN schools s ON s.id = c.school_id
		WHERE c.parent_id = $1
		ORDER BY c.first_name, c.created_at
	`
	rows, err := s.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var children []*Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate children: %w", err)
	}
	return children, nil
}

// Delete removes a child owned by parentID. A child with orders is kept.
func (s *PostgresStore) Delete(ctx context.Context, id, parentID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM children WHERE id = $1 AND parent_id = $2`, id, parentID)
	if postgres.IsForeignKeyViolation(err) {
		return apperrors.DataIntegrity("Child has orders and cannot be deleted")
	}
	if err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("Child not found")
	}
	return nil
}
