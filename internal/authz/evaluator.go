package authz

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Evaluator answers point permission checks. Mutating operations call
// RejectIfNotAllowed before performing any write.
type Evaluator struct {
	memberships MembershipReader
	resolver    *RoleResolver
	metrics     DecisionRecorder
}

// DecisionRecorder receives the outcome of every point check. A nil recorder
// is valid and records nothing.
type DecisionRecorder interface {
	RecordDecision(perm Permission, allowed bool)
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(memberships MembershipReader, resolver *RoleResolver) *Evaluator {
	return &Evaluator{memberships: memberships, resolver: resolver}
}

// WithMetrics attaches a decision recorder.
func (e *Evaluator) WithMetrics(rec DecisionRecorder) *Evaluator {
	e.metrics = rec
	return e
}

// IsAllowed reports whether principal may exercise perm at the scope named
// by actx. Admin principals bypass everything. Roles within one scope are
// combined deny-wins; scopes named by actx are evaluated independently and
// OR'd, so a denial at the school level cannot silently cancel a grant at
// the organization level or vice versa. A read failure is returned as an
// error, never as a denial.
func (e *Evaluator) IsAllowed(ctx context.Context, actx Context, principal Principal, perm Permission) (bool, error) {
	allowed, err := e.isAllowed(ctx, actx, principal, perm)
	if err == nil && e.metrics != nil {
		e.metrics.RecordDecision(perm, allowed)
	}
	return allowed, err
}

func (e *Evaluator) isAllowed(ctx context.Context, actx Context, principal Principal, perm Permission) (bool, error) {
	if principal.IsAdmin {
		return true, nil
	}

	checkOrg := actx.OrganizationID != nil
	checkSchools := len(actx.SchoolIDs) > 0
	if !checkOrg && !checkSchools {
		// A check is never silently scope-free.
		return false, nil
	}

	// Org and school memberships are independent read-only lookups; fetch
	// them concurrently and join before combining decisions.
	var (
		orgRoles    []uuid.UUID
		schoolRoles [][]uuid.UUID
	)
	g, gctx := errgroup.WithContext(ctx)
	if checkOrg {
		g.Go(func() error {
			memberships, err := e.memberships.OrgMembershipsOf(gctx, principal.ID)
			if err != nil {
				return err
			}
			for _, m := range memberships {
				if m.OrganizationID == *actx.OrganizationID {
					orgRoles = m.RoleIDs
					break
				}
			}
			return nil
		})
	}
	if checkSchools {
		g.Go(func() error {
			memberships, err := e.memberships.SchoolMembershipsOf(gctx, principal.ID)
			if err != nil {
				return err
			}
			wanted := make(map[uuid.UUID]struct{}, len(actx.SchoolIDs))
			for _, id := range actx.SchoolIDs {
				wanted[id] = struct{}{}
			}
			for _, m := range memberships {
				if _, ok := wanted[m.SchoolID]; ok {
					schoolRoles = append(schoolRoles, m.RoleIDs)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	if checkOrg && len(orgRoles) > 0 {
		decision, err := e.resolver.Resolve(ctx, orgRoles, perm)
		if err != nil {
			return false, err
		}
		if decision.Allowed {
			return true, nil
		}
	}
	for _, roles := range schoolRoles {
		decision, err := e.resolver.Resolve(ctx, roles, perm)
		if err != nil {
			return false, err
		}
		if decision.Allowed {
			return true, nil
		}
	}
	return false, nil
}

// RejectIfNotAllowed fails with a PermissionDeniedError unless the check
// passes. The typed error carries the permission and evaluated context.
func (e *Evaluator) RejectIfNotAllowed(ctx context.Context, actx Context, principal Principal, perm Permission) error {
	allowed, err := e.IsAllowed(ctx, actx, principal, perm)
	if err != nil {
		return err
	}
	if !allowed {
		return &PermissionDeniedError{Permission: perm, Context: actx}
	}
	return nil
}

// RejectIfNotAdmin fails unless the principal carries the system-wide admin
// flag.
func (e *Evaluator) RejectIfNotAdmin(principal Principal) error {
	if principal.IsAdmin {
		return nil
	}
	return &PermissionDeniedError{Permission: "system_admin"}
}
