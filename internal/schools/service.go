package schools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// Invalidator drops a user's cached memberships after a membership write.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// Enqueuer schedules the membership cascade that follows a soft delete.
type Enqueuer interface {
	EnqueueMembershipCascade(ctx context.Context, kind string, id uuid.UUID) error
}

// Service orchestrates school operations.
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

// List returns the schools visible to the principal.
func (s *Service) List(ctx context.Context, principal authz.Principal, page shared.Pagination) ([]School, int, error) {
	scope, err := s.scopes.ResolveScope(ctx, authz.KindSchool, principal, nil)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, scope, page)
}

// Get returns one school if it is inside the principal's scope.
func (s *Service) Get(ctx context.Context, principal authz.Principal, id uuid.UUID) (School, error) {
	scope, err := s.scopes.ResolveScope(ctx, authz.KindSchool, principal, nil)
	if err != nil {
		return School{}, err
	}
	return s.repo.Get(ctx, scope, id)
}

// Create creates a school inside an organization.
func (s *Service) Create(ctx context.Context, principal authz.Principal, orgID uuid.UUID, name string) (School, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return School{}, fmt.Errorf("%w: school name required", shared.ErrValidation)
	}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &orgID}, principal, authz.PermCreateSchool); err != nil {
		return School{}, err
	}
	return s.repo.Create(ctx, orgID, name)
}

// Rename updates the school name. The check runs against both the owning
// organization and the school itself, so a grant held at either scope
// suffices.
func (s *Service) Rename(ctx context.Context, principal authz.Principal, id uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: school name required", shared.ErrValidation)
	}
	school, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	authzCtx := authz.Context{OrganizationID: &school.OrganizationID, SchoolIDs: []uuid.UUID{id}}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authzCtx, principal, authz.PermEditSchool); err != nil {
		return err
	}
	return s.repo.Rename(ctx, id, name)
}

// SoftDelete deactivates the school and schedules the membership cascade.
func (s *Service) SoftDelete(ctx context.Context, principal authz.Principal, id uuid.UUID) error {
	school, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	authzCtx := authz.Context{OrganizationID: &school.OrganizationID, SchoolIDs: []uuid.UUID{id}}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authzCtx, principal, authz.PermDeleteSchool); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	if err := s.enqueuer.EnqueueMembershipCascade(ctx, "school", id); err != nil {
		s.logger.Error("enqueue membership cascade", slog.Any("error", err), slog.String("school_id", id.String()))
	}
	return nil
}

// AddMember adds or reactivates a school membership carrying roleIDs. Roles
// must be owned by the school's organization.
func (s *Service) AddMember(ctx context.Context, principal authz.Principal, schoolID, userID uuid.UUID, roleIDs []uuid.UUID) error {
	school, err := s.repo.Find(ctx, schoolID)
	if err != nil {
		return err
	}
	authzCtx := authz.Context{OrganizationID: &school.OrganizationID, SchoolIDs: []uuid.UUID{schoolID}}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authzCtx, principal, authz.PermSendInvitation); err != nil {
		return err
	}
	ok, err := s.repo.RolesBelongTo(ctx, school.OrganizationID, roleIDs)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: roles must belong to the school's organization", shared.ErrValidation)
	}
	if err := s.repo.AddMember(ctx, schoolID, userID, roleIDs); err != nil {
		return err
	}
	if err := s.invalidator.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("membership cache invalidation failed", slog.Any("error", err), slog.String("user_id", userID.String()))
	}
	return nil
}

// RemoveMember soft-removes a school membership.
func (s *Service) RemoveMember(ctx context.Context, principal authz.Principal, schoolID, userID uuid.UUID) error {
	school, err := s.repo.Find(ctx, schoolID)
	if err != nil {
		return err
	}
	authzCtx := authz.Context{OrganizationID: &school.OrganizationID, SchoolIDs: []uuid.UUID{schoolID}}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authzCtx, principal, authz.PermRemoveMembership); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, schoolID, userID); err != nil {
		return err
	}
	if err := s.invalidator.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("membership cache invalidation failed", slog.Any("error", err), slog.String("user_id", userID.String()))
	}
	return nil
}

// ListMembers returns the active memberships of a school.
func (s *Service) ListMembers(ctx context.Context, principal authz.Principal, schoolID uuid.UUID) ([]Member, error) {
	school, err := s.repo.Find(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	authzCtx := authz.Context{OrganizationID: &school.OrganizationID, SchoolIDs: []uuid.UUID{schoolID}}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authzCtx, principal, authz.PermViewUsers); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, schoolID)
}
