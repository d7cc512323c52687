package orgs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// adminPermissions are granted to the creator's Organization Admin role.
var adminPermissions = []authz.Permission{
	authz.PermEditOrganization,
	authz.PermDeleteOrganization,
	authz.PermSendInvitation,
	authz.PermRemoveMembership,
	authz.PermViewUsers,
	authz.PermViewSchool,
	authz.PermViewClasses,
	authz.PermViewRoles,
	authz.PermCreateSchool,
	authz.PermEditSchool,
	authz.PermDeleteSchool,
	authz.PermCreateClass,
	authz.PermEditClass,
	authz.PermDeleteClass,
	authz.PermCreateRole,
	authz.PermEditRole,
	authz.PermDeleteRole,
}

// Invalidator drops a user's cached memberships after a membership write.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// Enqueuer schedules the membership cascade that follows a soft delete.
type Enqueuer interface {
	EnqueueMembershipCascade(ctx context.Context, kind string, id uuid.UUID) error
}

// Service orchestrates organization operations.
type Service struct {
	repo        Repository
	evaluator   *authz.Evaluator
	scopes      *authz.ScopeResolver
	invalidator Invalidator
	enqueuer    Enqueuer
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, evaluator *authz.Evaluator, scopes *authz.ScopeResolver, invalidator Invalidator, enqueuer Enqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, evaluator: evaluator, scopes: scopes, invalidator: invalidator, enqueuer: enqueuer, logger: logger}
}

// List returns the organizations visible to the principal.
func (s *Service) List(ctx context.Context, principal authz.Principal, page shared.Pagination) ([]Organization, int, error) {
	scope, err := s.scopes.ResolveScope(ctx, authz.KindOrganization, principal, nil)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, scope, page)
}

// Get returns one organization if it is inside the principal's scope.
func (s *Service) Get(ctx context.Context, principal authz.Principal, id uuid.UUID) (Organization, error) {
	scope, err := s.scopes.ResolveScope(ctx, authz.KindOrganization, principal, nil)
	if err != nil {
		return Organization{}, err
	}
	return s.repo.Get(ctx, scope, id)
}

// Create creates an organization owned by the principal, who becomes its
// first member through a generated Organization Admin role.
func (s *Service) Create(ctx context.Context, principal authz.Principal, name string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: organization name required", shared.ErrValidation)
	}
	org, err := s.repo.CreateWithAdmin(ctx, name, principal.ID, adminPermissions)
	if err != nil {
		return Organization{}, err
	}
	if err := s.invalidator.Invalidate(ctx, principal.ID); err != nil {
		s.logger.Warn("membership cache invalidation failed", slog.Any("error", err), slog.String("user_id", principal.ID.String()))
	}
	return org, nil
}

// Rename updates the organization name.
func (s *Service) Rename(ctx context.Context, principal authz.Principal, id uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: organization name required", shared.ErrValidation)
	}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &id}, principal, authz.PermEditOrganization); err != nil {
		return err
	}
	return s.repo.Rename(ctx, id, name)
}

// SoftDelete deactivates the organization and schedules the membership
// cascade that soft-removes its memberships.
func (s *Service) SoftDelete(ctx context.Context, principal authz.Principal, id uuid.UUID) error {
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &id}, principal, authz.PermDeleteOrganization); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	if err := s.enqueuer.EnqueueMembershipCascade(ctx, "organization", id); err != nil {
		s.logger.Error("enqueue membership cascade", slog.Any("error", err), slog.String("organization_id", id.String()))
	}
	return nil
}

// AddMember adds or reactivates a membership carrying roleIDs. Roles from
// another organization are rejected before any write.
func (s *Service) AddMember(ctx context.Context, principal authz.Principal, orgID, userID uuid.UUID, roleIDs []uuid.UUID) error {
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &orgID}, principal, authz.PermSendInvitation); err != nil {
		return err
	}
	ok, err := s.repo.RolesBelongTo(ctx, orgID, roleIDs)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: roles must belong to the organization", shared.ErrValidation)
	}
	if err := s.repo.AddMember(ctx, orgID, userID, roleIDs); err != nil {
		return err
	}
	if err := s.invalidator.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("membership cache invalidation failed", slog.Any("error", err), slog.String("user_id", userID.String()))
	}
	return nil
}

// RemoveMember soft-removes a membership.
func (s *Service) RemoveMember(ctx context.Context, principal authz.Principal, orgID, userID uuid.UUID) error {
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &orgID}, principal, authz.PermRemoveMembership); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, orgID, userID); err != nil {
		return err
	}
	if err := s.invalidator.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("membership cache invalidation failed", slog.Any("error", err), slog.String("user_id", userID.String()))
	}
	return nil
}

// ListMembers returns the active memberships of an organization.
func (s *Service) ListMembers(ctx context.Context, principal authz.Principal, orgID uuid.UUID) ([]Member, error) {
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &orgID}, principal, authz.PermViewUsers); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, orgID)
}
