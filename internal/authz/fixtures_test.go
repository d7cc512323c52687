package authz

import (
	"context"

	"github.com/google/uuid"
)

// fakeStore is an in-memory MembershipReader + RoleReader used across the
// package tests.
type fakeStore struct {
	orgMemberships    map[uuid.UUID][]OrgMembership
	schoolMemberships map[uuid.UUID][]SchoolMembership
	// assignments[roleID][perm] = explicit allow flag; missing = no opinion.
	assignments map[uuid.UUID]map[Permission]bool

	orgErr    error
	schoolErr error
	roleErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orgMemberships:    make(map[uuid.UUID][]OrgMembership),
		schoolMemberships: make(map[uuid.UUID][]SchoolMembership),
		assignments:       make(map[uuid.UUID]map[Permission]bool),
	}
}

func (f *fakeStore) OrgMembershipsOf(_ context.Context, userID uuid.UUID) ([]OrgMembership, error) {
	if f.orgErr != nil {
		return nil, f.orgErr
	}
	return f.orgMemberships[userID], nil
}

func (f *fakeStore) SchoolMembershipsOf(_ context.Context, userID uuid.UUID) ([]SchoolMembership, error) {
	if f.schoolErr != nil {
		return nil, f.schoolErr
	}
	return f.schoolMemberships[userID], nil
}

func (f *fakeStore) PermissionAssignments(_ context.Context, roleIDs []uuid.UUID, perm Permission) ([]bool, error) {
	if f.roleErr != nil {
		return nil, f.roleErr
	}
	var out []bool
	for _, id := range roleIDs {
		if allow, ok := f.assignments[id][perm]; ok {
			out = append(out, allow)
		}
	}
	return out, nil
}

func (f *fakeStore) addRole(perms map[Permission]bool) uuid.UUID {
	id := uuid.New()
	f.assignments[id] = perms
	return id
}

func (f *fakeStore) joinOrg(userID, orgID uuid.UUID, roleIDs ...uuid.UUID) {
	f.orgMemberships[userID] = append(f.orgMemberships[userID], OrgMembership{
		OrganizationID: orgID,
		RoleIDs:        roleIDs,
	})
}

func (f *fakeStore) joinSchool(userID, schoolID, orgID uuid.UUID, roleIDs ...uuid.UUID) {
	f.schoolMemberships[userID] = append(f.schoolMemberships[userID], SchoolMembership{
		SchoolID:       schoolID,
		OrganizationID: orgID,
		RoleIDs:        roleIDs,
	})
}

func (f *fakeStore) evaluator() *Evaluator {
	return NewEvaluator(f, NewRoleResolver(f))
}

func (f *fakeStore) scopeResolver(collapse bool) *ScopeResolver {
	return NewScopeResolver(NewGraph(f, NewRoleResolver(f)), collapse)
}
