package authz

import (
	"github.com/google/uuid"
)

// Predicate is an abstract row filter produced by scope resolution. The core
// never executes queries; the storage layer translates a predicate tree into
// its native join/filter syntax.
type Predicate interface {
	pred()
}

// Always matches every row (admin scope).
type Always struct{}

// Never matches no rows. It is the valid empty-scope result of a list query
// with no grant, not an error.
type Never struct{}

// BelongsToOrgIn matches rows whose owning organization is one of OrgIDs.
type BelongsToOrgIn struct{ OrgIDs []uuid.UUID }

// ReachableViaSchoolIn matches rows reachable from one of SchoolIDs.
type ReachableViaSchoolIn struct{ SchoolIDs []uuid.UUID }

// MemberOfOrgIn matches users holding a membership in one of OrgIDs.
type MemberOfOrgIn struct{ OrgIDs []uuid.UUID }

// MemberOfSchoolIn matches users holding a membership in one of SchoolIDs.
type MemberOfSchoolIn struct{ SchoolIDs []uuid.UUID }

// MemberOfClassTaughtBy matches users co-enrolled in a class the given user
// teaches.
type MemberOfClassTaughtBy struct{ UserID uuid.UUID }

// MemberOfClassStudiedBy matches users co-enrolled in a class the given user
// studies in.
type MemberOfClassStudiedBy struct{ UserID uuid.UUID }

// OwnRecord matches the user's own row.
type OwnRecord struct{ UserID uuid.UUID }

// SharesEmailWith matches rows carrying the same email address as the given
// user's account.
type SharesEmailWith struct{ UserID uuid.UUID }

// SystemFlagged matches taxonomy rows marked system=true.
type SystemFlagged struct{}

// SharedWithOrgIn matches taxonomy rows explicitly shared with one of OrgIDs.
type SharedWithOrgIn struct{ OrgIDs []uuid.UUID }

// Or matches rows satisfying at least one term.
type Or struct{ Terms []Predicate }

// And matches rows satisfying every term.
type And struct{ Terms []Predicate }

func (Always) pred()                 {}
func (Never) pred()                  {}
func (BelongsToOrgIn) pred()         {}
func (ReachableViaSchoolIn) pred()   {}
func (MemberOfOrgIn) pred()          {}
func (MemberOfSchoolIn) pred()       {}
func (MemberOfClassTaughtBy) pred()  {}
func (MemberOfClassStudiedBy) pred() {}
func (OwnRecord) pred()              {}
func (SharesEmailWith) pred()        {}
func (SystemFlagged) pred()          {}
func (SharedWithOrgIn) pred()        {}
func (Or) pred()                     {}
func (And) pred()                    {}

// NewOr builds a disjunction, applying row-set-preserving simplifications:
// Never terms vanish, an Always term absorbs everything, nested ORs flatten,
// and leaf terms of the same shape merge their ID sets. A disjunction of
// nothing is Never.
func NewOr(terms ...Predicate) Predicate {
	flat := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		switch v := t.(type) {
		case nil:
		case Never:
		case Always:
			return Always{}
		case Or:
			flat = append(flat, v.Terms...)
		default:
			flat = append(flat, t)
		}
	}
	flat = mergeLeaves(flat)
	switch len(flat) {
	case 0:
		return Never{}
	case 1:
		return flat[0]
	}
	return Or{Terms: flat}
}

// NewAnd builds a conjunction: Always terms vanish, a Never term absorbs
// everything, nested ANDs flatten. A conjunction of nothing is Always.
func NewAnd(terms ...Predicate) Predicate {
	flat := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		switch v := t.(type) {
		case nil:
		case Always:
		case Never:
			return Never{}
		case And:
			flat = append(flat, v.Terms...)
		default:
			flat = append(flat, t)
		}
	}
	switch len(flat) {
	case 0:
		return Always{}
	case 1:
		return flat[0]
	}
	return And{Terms: flat}
}

// mergeLeaves unions the ID sets of same-shape leaves inside a disjunction.
// A ∈ {x} OR A ∈ {y} is exactly A ∈ {x,y}.
func mergeLeaves(terms []Predicate) []Predicate {
	var (
		orgs        []uuid.UUID
		schools     []uuid.UUID
		memberOrgs  []uuid.UUID
		memberSchls []uuid.UUID
		sharedOrgs  []uuid.UUID
		rest        []Predicate
		hasOrg      bool
		hasSchool   bool
		hasMOrg     bool
		hasMSchool  bool
		hasShared   bool
	)
	for _, t := range terms {
		switch v := t.(type) {
		case BelongsToOrgIn:
			orgs = unionIDs(orgs, v.OrgIDs)
			hasOrg = true
		case ReachableViaSchoolIn:
			schools = unionIDs(schools, v.SchoolIDs)
			hasSchool = true
		case MemberOfOrgIn:
			memberOrgs = unionIDs(memberOrgs, v.OrgIDs)
			hasMOrg = true
		case MemberOfSchoolIn:
			memberSchls = unionIDs(memberSchls, v.SchoolIDs)
			hasMSchool = true
		case SharedWithOrgIn:
			sharedOrgs = unionIDs(sharedOrgs, v.OrgIDs)
			hasShared = true
		default:
			rest = append(rest, t)
		}
	}
	out := rest[:0:0]
	if hasOrg {
		out = append(out, BelongsToOrgIn{OrgIDs: orgs})
	}
	if hasSchool {
		out = append(out, ReachableViaSchoolIn{SchoolIDs: schools})
	}
	if hasMOrg {
		out = append(out, MemberOfOrgIn{OrgIDs: memberOrgs})
	}
	if hasMSchool {
		out = append(out, MemberOfSchoolIn{SchoolIDs: memberSchls})
	}
	if hasShared {
		out = append(out, SharedWithOrgIn{OrgIDs: sharedOrgs})
	}
	return append(out, rest...)
}

func unionIDs(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	out := make([]uuid.UUID, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// subsetOf reports whether every element of a appears in b.
func subsetOf(a, b []uuid.UUID) bool {
	set := make(map[uuid.UUID]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	for _, id := range a {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
