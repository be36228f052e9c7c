package children

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/observability"
)

// Service manages the children of parents
type Service struct {
	store  Store
	logger *observability.Logger
}

// NewService creates a children service
func NewService(store Store, logger *observability.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// ListSchools returns the schools a child can be enrolled at
func (s *Service) ListSchools(ctx context.Context) ([]School, error) {
	return s.store.ListSchools(ctx)
}

// Create adds a child to parentID
func (s *Service) Create(ctx context.Context, parentID string, req Request) (*Child, error) {
	c, err := s.fromRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	c.ID = uuid.NewString()
	c.ParentID = parentID

	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.WithFields(map[string]interface{}{
		"child_id":  c.ID,
		"parent_id": parentID,
		"school_id": c.SchoolID,
	}).Info("Child created")
	return c, nil
}

// Update replaces the details of a child owned by parentID
func (s *Service) Update(ctx context.Context, parentID, childID string, req Request) (*Child, error) {
	existing, err := s.owned(ctx, parentID, childID, "update")
	if err != nil {
		return nil, err
	}
	c, err := s.fromRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	c.ID = existing.ID
	c.ParentID = existing.ParentID
	c.CreatedAt = existing.CreatedAt

	if err := s.store.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a child owned by parentID. Children with orders cannot be
// deleted.
func (s *Service) Delete(ctx context.Context, parentID, childID string) error {
	if _, err := s.owned(ctx, parentID, childID, "delete"); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, childID, parentID); err != nil {
		return err
	}
	s.logger.WithFields(map[string]interface{}{
		"child_id":  childID,
		"parent_id": parentID,
	}).Info("Child deleted")
	return nil
}

// Get returns a child owned by parentID. Another parent's child is reported
// as missing.
func (s *Service) Get(ctx context.Context, parentID, childID string) (*Child, error) {
	if childID == "" {
		return nil, apperrors.InvalidInput("child id is required")
	}
	c, err := s.store.Get(ctx, childID)
	if err != nil {
		return nil, err
	}
	if c.ParentID != parentID {
		return nil, apperrors.NotFound("Child not found")
	}
	return c, nil
}

// List returns every child of parentID
func (s *Service) List(ctx context.Context, parentID string) ([]*Child, error) {
	return s.store.ListByParent(ctx, parentID)
}

func (s *Service) owned(ctx context.Context, parentID, childID, action string) (*Child, error) {
	if childID == "" {
		return nil, apperrors.InvalidInput("child id is required")
	}
	c, err := s.store.Get(ctx, childID)
	if err != nil {
		return nil, err
	}
	if c.ParentID != parentID {
		return nil, apperrors.PermissionDenied("You do not have permission to %s this child", action)
	}
	return c, nil
}

// fromRequest validates a form and resolves its school
func (s *Service) fromRequest(ctx context.Context, req Request) (*Child, error) {
	firstName, err := validateName(req.FirstName, "First name")
	if err != nil {
		return nil, err
	}
	lastName, err := validateName(req.LastName, "Last name")
	if err != nil {
		return nil, err
	}
	grade := strings.TrimSpace(req.Grade)
	if utf8.RuneCountInString(grade) > maxGradeLength {
		return nil, apperrors.InvalidInput("Grade must be %d characters or less", maxGradeLength)
	}
	prefs, err := normalizePreferences(req.Preferences)
	if err != nil {
		return nil, err
	}

	school, err := s.store.GetSchool(ctx, strings.TrimSpace(req.SchoolID))
	if err != nil {
		return nil, err
	}
	return &Child{
		SchoolID:    school.ID,
		SchoolName:  school.Name,
		FirstName:   firstName,
		LastName:    lastName,
		Grade:       grade,
		Preferences: prefs,
	}, nil
}

func validateName(name, field string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 1 || n > maxNameLength {
		return "", apperrors.InvalidInput("%s must be between 1 and %d characters", field, maxNameLength)
	}
	return name, nil
}

func normalizePreferences(p Preferences) (Preferences, error) {
	p.Allergies = strings.TrimSpace(p.Allergies)
	if utf8.RuneCountInString(p.Allergies) > maxAllergiesLength {
		return Preferences{}, apperrors.InvalidInput("Allergies description must be %d characters or less", maxAllergiesLength)
	}
	if !p.BreadType.Valid() {
		return Preferences{}, apperrors.InvalidInput("unknown bread type: %q", string(p.BreadType))
	}
	return p, nil
}
