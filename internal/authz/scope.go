package authz

import (
	"context"

	"github.com/google/uuid"
)

// EntityKind names a scoped entity type for list-query resolution.
type EntityKind string

const (
	KindOrganization EntityKind = "organization"
	KindUser         EntityKind = "user"
	KindSchool       EntityKind = "school"
	KindClass        EntityKind = "class"
	KindProgram      EntityKind = "program"
	KindSubject      EntityKind = "subject"
	KindGrade        EntityKind = "grade"
	KindAgeRange     EntityKind = "age_range"
	KindCategory     EntityKind = "category"
	KindSubcategory  EntityKind = "subcategory"
)

// Tier indexes into a permission-tier list. Lower tiers are broader and
// need fewer joins, so they are preferred when granted.
const (
	TierOrg = iota
	TierSchool
	TierClass
)

// DefaultTiers returns the standard permission tiers for kind, ordered
// broadest first. Taxonomy kinds use a single org-level view permission.
func DefaultTiers(kind EntityKind) [][]Permission {
	switch kind {
	case KindUser:
		return [][]Permission{{PermViewUsers}, {PermViewSchoolUsers}, {PermViewClassUsers}}
	case KindSchool:
		return [][]Permission{{PermViewSchool}, {PermViewMySchool}}
	case KindClass:
		return [][]Permission{{PermViewClasses}, {PermViewSchoolClasses}}
	case KindProgram:
		return [][]Permission{{PermViewPrograms}}
	case KindSubject, KindCategory, KindSubcategory:
		return [][]Permission{{PermViewSubjects}}
	case KindGrade:
		return [][]Permission{{PermViewGrades}}
	case KindAgeRange:
		return [][]Permission{{PermViewAgeRanges}}
	default:
		return nil
	}
}

// ScopeRecorder receives the resolved scope shape for observability. A nil
// recorder records nothing.
type ScopeRecorder interface {
	RecordScope(kind EntityKind, shape string)
}

// ScopeResolver rewrites unscoped list queries into predicates covering only
// the rows a principal is entitled to see.
type ScopeResolver struct {
	graph           *Graph
	collapseSubsets bool
	metrics         ScopeRecorder
}

// NewScopeResolver constructs a ScopeResolver. collapseSubsets enables the
// school-tier short-circuit: when the organizations granting org-wide
// visibility cover every organization owning a school-level grant, the
// school join is skipped. The collapse never changes the row set.
func NewScopeResolver(graph *Graph, collapseSubsets bool) *ScopeResolver {
	return &ScopeResolver{graph: graph, collapseSubsets: collapseSubsets}
}

// WithMetrics attaches a scope recorder.
func (s *ScopeResolver) WithMetrics(rec ScopeRecorder) *ScopeResolver {
	s.metrics = rec
	return s
}

// ResolveScope returns the predicate narrowing a list query over kind for
// the principal. tiers holds the required permissions per visibility tier,
// broadest first; nil means DefaultTiers(kind). Every granted tier contributes a term
// and the disjunction is algebraically collapsed, so gaining a broader grant
// can never shrink the visible set. No grant at all yields Never, which the
// storage layer renders as an empty result, not an error.
func (s *ScopeResolver) ResolveScope(ctx context.Context, kind EntityKind, principal Principal, tiers [][]Permission) (Predicate, error) {
	p, err := s.resolve(ctx, kind, principal, tiers)
	if err == nil && s.metrics != nil {
		s.metrics.RecordScope(kind, predicateShape(p))
	}
	return p, err
}

func (s *ScopeResolver) resolve(ctx context.Context, kind EntityKind, principal Principal, tiers [][]Permission) (Predicate, error) {
	if principal.IsAdmin {
		return Always{}, nil
	}
	if tiers == nil {
		tiers = DefaultTiers(kind)
	}
	switch kind {
	case KindOrganization:
		// Organizations are always scoped to "mine"; no tiering.
		orgs, err := s.graph.MemberOrgs(ctx, principal.ID)
		if err != nil {
			return nil, err
		}
		if len(orgs) == 0 {
			return Never{}, nil
		}
		return BelongsToOrgIn{OrgIDs: orgs}, nil
	case KindUser:
		return s.userScope(ctx, principal, tiers)
	case KindSchool, KindClass:
		return s.reachableScope(ctx, kind, principal, tiers)
	case KindProgram, KindSubject, KindGrade, KindAgeRange, KindCategory, KindSubcategory:
		return s.taxonomyScope(ctx, principal, tiers)
	default:
		return Never{}, nil
	}
}

// userScope applies the user-specific tiering: org-membership reach, then
// school-membership reach, then classmates of taught or studied classes. The
// two class relations stay independent OR branches since a user may be
// reachable via either one alone. With no grant at all the principal sees
// themself plus accounts sharing their email, so signup flows can claim
// sibling accounts.
func (s *ScopeResolver) userScope(ctx context.Context, principal Principal, tiers [][]Permission) (Predicate, error) {
	var terms []Predicate

	if perms := tierPerms(tiers, TierOrg); len(perms) > 0 {
		orgs, err := s.graph.OrgsWithAnyOf(ctx, principal.ID, perms)
		if err != nil {
			return nil, err
		}
		if len(orgs) > 0 {
			terms = append(terms, MemberOfOrgIn{OrgIDs: orgs})
		}
	}
	if perms := tierPerms(tiers, TierSchool); len(perms) > 0 {
		grants, err := s.graph.SchoolsWithAnyOf(ctx, principal.ID, perms)
		if err != nil {
			return nil, err
		}
		if len(grants) > 0 {
			terms = append(terms, MemberOfSchoolIn{SchoolIDs: grantSchoolIDs(grants)})
		}
	}
	if perms := tierPerms(tiers, TierClass); len(perms) > 0 {
		granted, err := s.holdsAnywhere(ctx, principal.ID, perms)
		if err != nil {
			return nil, err
		}
		if granted {
			terms = append(terms,
				MemberOfClassTaughtBy{UserID: principal.ID},
				MemberOfClassStudiedBy{UserID: principal.ID},
			)
		}
	}
	if len(terms) == 0 {
		return NewOr(
			OwnRecord{UserID: principal.ID},
			SharesEmailWith{UserID: principal.ID},
		), nil
	}
	return NewOr(terms...), nil
}

// reachableScope covers schools and classes: rows owned by an organization
// granting the org-wide permission, OR rows reachable from a school whose
// membership grants the school-level permission.
func (s *ScopeResolver) reachableScope(ctx context.Context, kind EntityKind, principal Principal, tiers [][]Permission) (Predicate, error) {
	var (
		orgIDs []uuid.UUID
		grants []SchoolGrant
	)
	if perms := tierPerms(tiers, TierOrg); len(perms) > 0 {
		var err error
		orgIDs, err = s.graph.OrgsWithAnyOf(ctx, principal.ID, perms)
		if err != nil {
			return nil, err
		}
	}
	if perms := tierPerms(tiers, TierSchool); len(perms) > 0 {
		var err error
		grants, err = s.graph.SchoolsWithAnyOf(ctx, principal.ID, perms)
		if err != nil {
			return nil, err
		}
	}

	// Short-circuit: a school grant is redundant when its owning org already
	// grants org-wide visibility, because every school row reachable through
	// the membership join belongs to that org. Both org sets come from the
	// same membership snapshot, which is what makes the subset test sound.
	if s.collapseSubsets && kind == KindSchool && len(orgIDs) > 0 && len(grants) > 0 {
		if subsetOf(grantOrgIDs(grants), orgIDs) {
			grants = nil
		}
	}

	var terms []Predicate
	if len(orgIDs) > 0 {
		terms = append(terms, BelongsToOrgIn{OrgIDs: orgIDs})
	}
	if len(grants) > 0 {
		terms = append(terms, ReachableViaSchoolIn{SchoolIDs: grantSchoolIDs(grants)})
	}
	return NewOr(terms...), nil
}

// taxonomyScope covers the academic taxonomy: rows owned by an organization
// where the view permission is held, system rows, and rows shared with one
// of those organizations. Without a qualifying organization the scope
// narrows to system rows only.
func (s *ScopeResolver) taxonomyScope(ctx context.Context, principal Principal, tiers [][]Permission) (Predicate, error) {
	perms := tierPerms(tiers, TierOrg)
	if len(perms) == 0 {
		return SystemFlagged{}, nil
	}
	orgs, err := s.graph.OrgsWithAnyOf(ctx, principal.ID, perms)
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return SystemFlagged{}, nil
	}
	return NewOr(
		BelongsToOrgIn{OrgIDs: orgs},
		SystemFlagged{},
		SharedWithOrgIn{OrgIDs: orgs},
	), nil
}

// holdsAnywhere reports whether the principal holds any of perms at any org
// or school membership.
func (s *ScopeResolver) holdsAnywhere(ctx context.Context, userID uuid.UUID, perms []Permission) (bool, error) {
	orgs, err := s.graph.OrgsWithAnyOf(ctx, userID, perms)
	if err != nil {
		return false, err
	}
	if len(orgs) > 0 {
		return true, nil
	}
	grants, err := s.graph.SchoolsWithAnyOf(ctx, userID, perms)
	if err != nil {
		return false, err
	}
	return len(grants) > 0, nil
}

func tierPerms(tiers [][]Permission, tier int) []Permission {
	if tier >= len(tiers) {
		return nil
	}
	return tiers[tier]
}

func grantSchoolIDs(grants []SchoolGrant) []uuid.UUID {
	ids := make([]uuid.UUID, len(grants))
	for i, g := range grants {
		ids[i] = g.SchoolID
	}
	return ids
}

func grantOrgIDs(grants []SchoolGrant) []uuid.UUID {
	var ids []uuid.UUID
	for _, g := range grants {
		ids = append(ids, g.OrganizationID)
	}
	return dedupeIDs(ids)
}

func predicateShape(p Predicate) string {
	switch p.(type) {
	case Always:
		return "unrestricted"
	case Never:
		return "empty"
	case Or, And:
		return "composite"
	default:
		return "single"
	}
}
