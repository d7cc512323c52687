package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// Service orchestrates taxonomy operations across the six entity kinds.
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

// List returns the entities of kind visible to the principal: own-org rows,
// system rows and rows shared with a qualifying organization.
func (s *Service) List(ctx context.Context, principal authz.Principal, kind authz.EntityKind, page shared.Pagination) ([]Entity, int, error) {
	if !KnownKind(kind) {
		return nil, 0, shared.ErrNotFound
	}
	scope, err := s.scopes.ResolveScope(ctx, kind, principal, nil)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, kind, scope, page)
}

// Get returns one entity if it is inside the principal's scope.
func (s *Service) Get(ctx context.Context, principal authz.Principal, kind authz.EntityKind, id uuid.UUID) (Entity, error) {
	if !KnownKind(kind) {
		return Entity{}, shared.ErrNotFound
	}
	scope, err := s.scopes.ResolveScope(ctx, kind, principal, nil)
	if err != nil {
		return Entity{}, err
	}
	return s.repo.Get(ctx, kind, scope, id)
}

// Create creates an organization-owned entity of kind.
func (s *Service) Create(ctx context.Context, principal authz.Principal, kind authz.EntityKind, orgID uuid.UUID, name string) (Entity, error) {
	spec, ok := kinds[kind]
	if !ok {
		return Entity{}, shared.ErrNotFound
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Entity{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	if err := s.evaluator.RejectIfNotAllowed(ctx, authz.Context{OrganizationID: &orgID}, principal, spec.create); err != nil {
		return Entity{}, err
	}
	return s.repo.Create(ctx, kind, orgID, name)
}

// Rename updates an entity's name. System entities are immutable.
func (s *Service) Rename(ctx context.Context, principal authz.Principal, kind authz.EntityKind, id uuid.UUID, name string) error {
	spec, ok := kinds[kind]
	if !ok {
		return shared.ErrNotFound
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	if err := s.guard(ctx, principal, kind, id, spec.edit); err != nil {
		return err
	}
	return s.repo.Rename(ctx, kind, id, name)
}

// SoftDelete deactivates an entity. System entities are immutable.
func (s *Service) SoftDelete(ctx context.Context, principal authz.Principal, kind authz.EntityKind, id uuid.UUID) error {
	spec, ok := kinds[kind]
	if !ok {
		return shared.ErrNotFound
	}
	if err := s.guard(ctx, principal, kind, id, spec.delete); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, kind, id)
}

// Share makes the entity visible to another organization.
func (s *Service) Share(ctx context.Context, principal authz.Principal, kind authz.EntityKind, id, targetOrgID uuid.UUID) error {
	if !KnownKind(kind) {
		return shared.ErrNotFound
	}
	if err := s.guard(ctx, principal, kind, id, authz.PermShareContent); err != nil {
		return err
	}
	return s.repo.Share(ctx, kind, id, targetOrgID)
}

// Unshare revokes a share.
func (s *Service) Unshare(ctx context.Context, principal authz.Principal, kind authz.EntityKind, id, targetOrgID uuid.UUID) error {
	if !KnownKind(kind) {
		return shared.ErrNotFound
	}
	if err := s.guard(ctx, principal, kind, id, authz.PermShareContent); err != nil {
		return err
	}
	return s.repo.Unshare(ctx, kind, id, targetOrgID)
}

// SharedWith returns the organizations the entity is shared with.
func (s *Service) SharedWith(ctx context.Context, principal authz.Principal, kind authz.EntityKind, id uuid.UUID) ([]uuid.UUID, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if err := s.guard(ctx, principal, kind, id, spec.view); err != nil {
		return nil, err
	}
	return s.repo.SharedWith(ctx, kind, id)
}

// guard loads the entity and checks perm against its owning organization.
// System entities have no owner, so mutating them always fails unless the
// principal is an admin; the repository additionally refuses system writes.
func (s *Service) guard(ctx context.Context, principal authz.Principal, kind authz.EntityKind, id uuid.UUID, perm authz.Permission) error {
	e, err := s.repo.Find(ctx, kind, id)
	if err != nil {
		return err
	}
	if e.System {
		return s.evaluator.RejectIfNotAdmin(principal)
	}
	authzCtx := authz.Context{OrganizationID: e.OrganizationID}
	return s.evaluator.RejectIfNotAllowed(ctx, authzCtx, principal, perm)
}
