package authz

import (
	"context"

	"github.com/google/uuid"
)

// Decision is the outcome of resolving a permission against a role set.
type Decision struct {
	Allowed bool
}

// RoleResolver computes the effective allow/deny for a permission across the
// roles held at a single scope.
type RoleResolver struct {
	roles RoleReader
}

// NewRoleResolver constructs a RoleResolver over the given reader.
func NewRoleResolver(roles RoleReader) *RoleResolver {
	return &RoleResolver{roles: roles}
}

// Resolve applies deny-overrides-grant semantics: the result is the AND of
// every explicit assignment of perm across roleIDs. Roles without an
// assignment contribute nothing, and a role set with no assignment at all is
// denied. The reduction is a pure fold, so it is order-independent and
// idempotent under duplicate roles.
func (r *RoleResolver) Resolve(ctx context.Context, roleIDs []uuid.UUID, perm Permission) (Decision, error) {
	roleIDs = dedupeIDs(roleIDs)
	if len(roleIDs) == 0 {
		return Decision{Allowed: false}, nil
	}
	assignments, err := r.roles.PermissionAssignments(ctx, roleIDs, perm)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: reduceAllow(assignments)}, nil
}

// reduceAllow folds explicit allow flags: absence denies, one explicit deny
// wins over any number of grants.
func reduceAllow(assignments []bool) bool {
	if len(assignments) == 0 {
		return false
	}
	for _, allow := range assignments {
		if !allow {
			return false
		}
	}
	return true
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
