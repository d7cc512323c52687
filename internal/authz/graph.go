package authz

import (
	"context"

	"github.com/google/uuid"
)

// Graph is a read-only view of a principal's memberships, filtered by the
// permissions held at each scope. It is the primitive the scope resolver
// composes; every filter goes through the role resolver so the same
// deny-overrides-grant reduction applies at every call site.
type Graph struct {
	memberships MembershipReader
	resolver    *RoleResolver
}

// SchoolGrant identifies a school the principal may see through, together
// with its owning organization.
type SchoolGrant struct {
	SchoolID       uuid.UUID
	OrganizationID uuid.UUID
}

// NewGraph constructs a membership graph.
func NewGraph(memberships MembershipReader, resolver *RoleResolver) *Graph {
	return &Graph{memberships: memberships, resolver: resolver}
}

// OrgsWithAnyOf returns the organizations where the principal's membership
// roles grant at least one of perms.
func (g *Graph) OrgsWithAnyOf(ctx context.Context, userID uuid.UUID, perms []Permission) ([]uuid.UUID, error) {
	memberships, err := g.memberships.OrgMembershipsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	var orgs []uuid.UUID
	for _, m := range memberships {
		ok, err := g.anyAllowed(ctx, m.RoleIDs, perms)
		if err != nil {
			return nil, err
		}
		if ok {
			orgs = append(orgs, m.OrganizationID)
		}
	}
	return orgs, nil
}

// SchoolsWithAnyOf returns the schools where the principal's membership
// roles grant at least one of perms.
func (g *Graph) SchoolsWithAnyOf(ctx context.Context, userID uuid.UUID, perms []Permission) ([]SchoolGrant, error) {
	memberships, err := g.memberships.SchoolMembershipsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	var grants []SchoolGrant
	for _, m := range memberships {
		ok, err := g.anyAllowed(ctx, m.RoleIDs, perms)
		if err != nil {
			return nil, err
		}
		if ok {
			grants = append(grants, SchoolGrant{SchoolID: m.SchoolID, OrganizationID: m.OrganizationID})
		}
	}
	return grants, nil
}

// MemberOrgs returns every organization the principal belongs to, regardless
// of permissions.
func (g *Graph) MemberOrgs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	memberships, err := g.memberships.OrgMembershipsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	orgs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		orgs = append(orgs, m.OrganizationID)
	}
	return orgs, nil
}

func (g *Graph) anyAllowed(ctx context.Context, roleIDs []uuid.UUID, perms []Permission) (bool, error) {
	for _, perm := range perms {
		decision, err := g.resolver.Resolve(ctx, roleIDs, perm)
		if err != nil {
			return false, err
		}
		if decision.Allowed {
			return true, nil
		}
	}
	return false, nil
}
