package users

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// Service orchestrates user reads. User accounts are provisioned outside
// this service, so the surface is read-only.
type Service struct {
	repo   Repository
	scopes *authz.ScopeResolver
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, scopes *authz.ScopeResolver, logger *slog.Logger) *Service {
	return &Service{repo: repo, scopes: scopes, logger: logger}
}

// List returns the users visible to the principal. With no view grant
// anywhere the scope degrades to the principal's own record plus accounts
// sharing their email, so the result is never an authorization error.
func (s *Service) List(ctx context.Context, principal authz.Principal, page shared.Pagination) ([]User, int, error) {
	scope, err := s.scopes.ResolveScope(ctx, authz.KindUser, principal, nil)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, scope, page)
}

// Get returns one user: always the principal's own record, otherwise only a
// record inside the resolved scope.
func (s *Service) Get(ctx context.Context, principal authz.Principal, id uuid.UUID) (User, error) {
	if id == principal.ID {
		return s.repo.Find(ctx, id)
	}
	scope, err := s.scopes.ResolveScope(ctx, authz.KindUser, principal, nil)
	if err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, scope, id)
}

// Me returns the principal's own record.
func (s *Service) Me(ctx context.Context, principal authz.Principal) (User, error) {
	return s.repo.Find(ctx, principal.ID)
}
