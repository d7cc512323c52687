package classes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// Service orchestrates class operations.
type Service struct {
	repo      Repository
	evaluator *authz.Evaluator
	scopes    *authz.ScopeResolver
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, evaluator *authz.Evaluator, scopes *authz.ScopeResolver, logger *slog.Logger) *Service {
	return &Service{repo: repo, evaluator: evaluator, scopes: scopes, logger: logger}
}

// List returns the classes visible to the principal.
func (s *Service) List(ctx context.Context, principal authz.Principal, page shared.Pagination) ([]Class, int, error) {
	scope, err := s.scopes.ResolveScope(ctx, authz.KindClass, principal, nil)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, scope, page)
}

// Get returns one class if it is inside the principal's scope.
func (s *Service) Get(ctx context.Context, principal authz.Principal, id uuid.UUID) (Class, error) {
	scope, err := s.scopes.ResolveScope(ctx, authz.KindClass, principal, nil)
	if err != nil {
		return Class{}, err
	}
	return s.repo.Get(ctx, scope, id)
}

// Create creates a class inside an organization.
func (s *Service) Create(ctx context.Context, principal authz.Principal, orgID uuid.UUID, name string) (Class, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Class{}, fmt.Errorf("%w: class name required", shared.ErrValidation)
	}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &orgID}, principal, authz.PermCreateClass); err != nil {
		return Class{}, err
	}
	return s.repo.Create(ctx, orgID, name)
}

// Rename updates the class name.
func (s *Service) Rename(ctx context.Context, principal authz.Principal, id uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: class name required", shared.ErrValidation)
	}
	if err := s.guard(ctx, principal, id, authz.PermEditClass); err != nil {
		return err
	}
	return s.repo.Rename(ctx, id, name)
}

// SoftDelete deactivates the class.
func (s *Service) SoftDelete(ctx context.Context, principal authz.Principal, id uuid.UUID) error {
	if err := s.guard(ctx, principal, id, authz.PermDeleteClass); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

// LinkSchool attaches the class to a school of the same organization.
func (s *Service) LinkSchool(ctx context.Context, principal authz.Principal, classID, schoolID uuid.UUID) error {
	if err := s.guard(ctx, principal, classID, authz.PermEditClass); err != nil {
		return err
	}
	ok, err := s.repo.SchoolInSameOrg(ctx, classID, schoolID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: school must belong to the class's organization", shared.ErrValidation)
	}
	return s.repo.LinkSchool(ctx, classID, schoolID)
}

// UnlinkSchool detaches the class from a school.
func (s *Service) UnlinkSchool(ctx context.Context, principal authz.Principal, classID, schoolID uuid.UUID) error {
	if err := s.guard(ctx, principal, classID, authz.PermEditClass); err != nil {
		return err
	}
	return s.repo.UnlinkSchool(ctx, classID, schoolID)
}

// AddTeacher adds a user to the teaching roster.
func (s *Service) AddTeacher(ctx context.Context, principal authz.Principal, classID, userID uuid.UUID) error {
	if err := s.guard(ctx, principal, classID, authz.PermEditClass); err != nil {
		return err
	}
	return s.repo.AddTeacher(ctx, classID, userID)
}

// RemoveTeacher removes a user from the teaching roster.
func (s *Service) RemoveTeacher(ctx context.Context, principal authz.Principal, classID, userID uuid.UUID) error {
	if err := s.guard(ctx, principal, classID, authz.PermEditClass); err != nil {
		return err
	}
	return s.repo.RemoveTeacher(ctx, classID, userID)
}

// AddStudent adds a user to the student roster.
func (s *Service) AddStudent(ctx context.Context, principal authz.Principal, classID, userID uuid.UUID) error {
	if err := s.guard(ctx, principal, classID, authz.PermEditClass); err != nil {
		return err
	}
	return s.repo.AddStudent(ctx, classID, userID)
}

// RemoveStudent removes a user from the student roster.
func (s *Service) RemoveStudent(ctx context.Context, principal authz.Principal, classID, userID uuid.UUID) error {
	if err := s.guard(ctx, principal, classID, authz.PermEditClass); err != nil {
		return err
	}
	return s.repo.RemoveStudent(ctx, classID, userID)
}

// GetRoster returns the class roster.
func (s *Service) GetRoster(ctx context.Context, principal authz.Principal, classID uuid.UUID) (Roster, error) {
	if err := s.guard(ctx, principal, classID, authz.PermViewClasses); err != nil {
		return Roster{}, err
	}
	return s.repo.GetRoster(ctx, classID)
}

// guard checks perm against the class's organization and its linked schools.
// A grant held at any of those scopes suffices.
func (s *Service) guard(ctx context.Context, principal authz.Principal, classID uuid.UUID, perm authz.Permission) error {
	class, err := s.repo.Find(ctx, classID)
	if err != nil {
		return err
	}
	authzCtx := authz.Context{
		OrganizationID: &class.OrganizationID,
		SchoolIDs:      class.SchoolIDs,
		ClassIDs:       []uuid.UUID{classID},
	}
	return s.evaluator.RejectIfNotAllowed(ctx, authzCtx, principal, perm)
}
