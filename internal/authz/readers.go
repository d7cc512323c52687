package authz

import (
	"context"

	"github.com/google/uuid"
)

// Principal describes the authenticated actor.
type Principal struct {
	ID      uuid.UUID
	Email   string
	IsAdmin bool
}

// Context names the scope a permission check is evaluated against. Unset
// fields mean "scope not applicable", never wildcard.
type Context struct {
	OrganizationID *uuid.UUID
	SchoolIDs      []uuid.UUID
	ClassIDs       []uuid.UUID
}

// OrgMembership is a principal's membership in one organization together
// with the roles held there.
type OrgMembership struct {
	OrganizationID uuid.UUID
	RoleIDs        []uuid.UUID
}

// SchoolMembership is a principal's membership in one school. The owning
// organization is carried so scope resolution can relate the two levels.
type SchoolMembership struct {
	SchoolID       uuid.UUID
	OrganizationID uuid.UUID
	RoleIDs        []uuid.UUID
}

// MembershipReader exposes a principal's active memberships. Implementations
// must exclude soft-deleted memberships, roles and parent entities.
type MembershipReader interface {
	OrgMembershipsOf(ctx context.Context, userID uuid.UUID) ([]OrgMembership, error)
	SchoolMembershipsOf(ctx context.Context, userID uuid.UUID) ([]SchoolMembership, error)
}

// RoleReader exposes explicit role-permission assignments. A role with no
// recorded assignment for the permission contributes nothing to the result.
type RoleReader interface {
	PermissionAssignments(ctx context.Context, roleIDs []uuid.UUID, perm Permission) ([]bool, error)
}
