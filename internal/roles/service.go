package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// Service orchestrates role operations.
type Service struct {
	repo      Repository
	evaluator *authz.Evaluator
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, evaluator *authz.Evaluator, logger *slog.Logger) *Service {
	return &Service{repo: repo, evaluator: evaluator, logger: logger}
}

// List returns the active roles of an organization.
func (s *Service) List(ctx context.Context, principal authz.Principal, orgID uuid.UUID, page shared.Pagination) ([]Role, int, error) {
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &orgID}, principal, authz.PermViewRoles); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, orgID, page)
}

// Get returns one role.
func (s *Service) Get(ctx context.Context, principal authz.Principal, id uuid.UUID) (Role, error) {
	role, err := s.repo.Find(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &role.OrganizationID}, principal, authz.PermViewRoles); err != nil {
		return Role{}, err
	}
	return role, nil
}

// Create creates a custom role inside an organization.
func (s *Service) Create(ctx context.Context, principal authz.Principal, orgID uuid.UUID, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &orgID}, principal, authz.PermCreateRole); err != nil {
		return Role{}, err
	}
	return s.repo.Create(ctx, orgID, name)
}

// Rename updates a custom role's name. System roles are immutable.
func (s *Service) Rename(ctx context.Context, principal authz.Principal, id uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	role, err := s.guarded(ctx, principal, id, authz.PermEditRole)
	if err != nil {
		return err
	}
	if role.SystemRole {
		return fmt.Errorf("%w: system roles cannot be modified", shared.ErrValidation)
	}
	return s.repo.Rename(ctx, id, name)
}

// SoftDelete deactivates a custom role. System roles are immutable.
func (s *Service) SoftDelete(ctx context.Context, principal authz.Principal, id uuid.UUID) error {
	role, err := s.guarded(ctx, principal, id, authz.PermDeleteRole)
	if err != nil {
		return err
	}
	if role.SystemRole {
		return fmt.Errorf("%w: system roles cannot be deleted", shared.ErrValidation)
	}
	return s.repo.SoftDelete(ctx, id)
}

// SetPermissions replaces the role's assignment rows. Every permission must
// exist in the catalog; an assignment with Allow false is an explicit deny.
func (s *Service) SetPermissions(ctx context.Context, principal authz.Principal, id uuid.UUID, assignments []Assignment) error {
	role, err := s.guarded(ctx, principal, id, authz.PermEditRole)
	if err != nil {
		return err
	}
	if role.SystemRole {
		return fmt.Errorf("%w: system roles cannot be modified", shared.ErrValidation)
	}
	seen := make(map[authz.Permission]struct{}, len(assignments))
	for _, a := range assignments {
		if !authz.IsDefined(a.Permission) {
			return fmt.Errorf("%w: unknown permission %q", shared.ErrValidation, a.Permission)
		}
		if _, dup := seen[a.Permission]; dup {
			return fmt.Errorf("%w: duplicate permission %q", shared.ErrValidation, a.Permission)
		}
		seen[a.Permission] = struct{}{}
	}
	return s.repo.SetPermissions(ctx, id, assignments)
}

// ListPermissions returns the role's assignment rows.
func (s *Service) ListPermissions(ctx context.Context, principal authz.Principal, id uuid.UUID) ([]Assignment, error) {
	if _, err := s.guarded(ctx, principal, id, authz.PermViewRoles); err != nil {
		return nil, err
	}
	return s.repo.ListPermissions(ctx, id)
}

// guarded loads the role and checks perm against its owning organization.
func (s *Service) guarded(ctx context.Context, principal authz.Principal, id uuid.UUID, perm authz.Permission) (Role, error) {
	role, err := s.repo.Find(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &role.OrganizationID}, principal, perm); err != nil {
		return Role{}, err
	}
	return role, nil
}
