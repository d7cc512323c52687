package schools

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

type mockRepository struct {
	schools  map[uuid.UUID]*School
	members  map[uuid.UUID][]Member
	orgRoles map[uuid.UUID]map[uuid.UUID]struct{}
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		schools:  make(map[uuid.UUID]*School),
		members:  make(map[uuid.UUID][]Member),
		orgRoles: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (m *mockRepository) List(_ context.Context, scope authz.Predicate, _ shared.Pagination) ([]School, int, error) {
	var out []School
	for _, s := range m.schools {
		if s.Status == StatusActive && scopeMatches(scope, *s) {
			out = append(out, *s)
		}
	}
	return out, len(out), nil
}

func (m *mockRepository) Get(_ context.Context, scope authz.Predicate, id uuid.UUID) (School, error) {
	s, ok := m.schools[id]
	if !ok || s.Status != StatusActive || !scopeMatches(scope, *s) {
		return School{}, shared.ErrNotFound
	}
	return *s, nil
}

func (m *mockRepository) Find(_ context.Context, id uuid.UUID) (School, error) {
	s, ok := m.schools[id]
	if !ok || s.Status != StatusActive {
		return School{}, shared.ErrNotFound
	}
	return *s, nil
}

func (m *mockRepository) Create(_ context.Context, orgID uuid.UUID, name string) (School, error) {
	s := School{ID: uuid.New(), OrganizationID: orgID, Name: name, Status: StatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.schools[s.ID] = &s
	return s, nil
}

func (m *mockRepository) Rename(_ context.Context, id uuid.UUID, name string) error {
	s, ok := m.schools[id]
	if !ok || s.Status != StatusActive {
		return shared.ErrNotFound
	}
	s.Name = name
	return nil
}

func (m *mockRepository) SoftDelete(_ context.Context, id uuid.UUID) error {
	s, ok := m.schools[id]
	if !ok || s.Status != StatusActive {
		return shared.ErrNotFound
	}
	s.Status = StatusInactive
	return nil
}

func (m *mockRepository) AddMember(_ context.Context, schoolID, userID uuid.UUID, roleIDs []uuid.UUID) error {
	m.members[schoolID] = append(m.members[schoolID], Member{UserID: userID, SchoolID: schoolID, RoleIDs: roleIDs})
	return nil
}

func (m *mockRepository) RemoveMember(_ context.Context, schoolID, userID uuid.UUID) error {
	members := m.members[schoolID]
	for i, mem := range members {
		if mem.UserID == userID {
			m.members[schoolID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *mockRepository) ListMembers(_ context.Context, schoolID uuid.UUID) ([]Member, error) {
	return m.members[schoolID], nil
}

func (m *mockRepository) RolesBelongTo(_ context.Context, orgID uuid.UUID, roleIDs []uuid.UUID) (bool, error) {
	owned := m.orgRoles[orgID]
	for _, id := range roleIDs {
		if _, ok := owned[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func scopeMatches(scope authz.Predicate, s School) bool {
	switch v := scope.(type) {
	case authz.Always:
		return true
	case authz.Never:
		return false
	case authz.BelongsToOrgIn:
		for _, id := range v.OrgIDs {
			if id == s.OrganizationID {
				return true
			}
		}
	case authz.ReachableViaSchoolIn:
		for _, id := range v.SchoolIDs {
			if id == s.ID {
				return true
			}
		}
	case authz.Or:
		for _, term := range v.Terms {
			if scopeMatches(term, s) {
				return true
			}
		}
	}
	return false
}

type authzStore struct {
	orgMemberships    map[uuid.UUID][]authz.OrgMembership
	schoolMemberships map[uuid.UUID][]authz.SchoolMembership
	assignments       map[uuid.UUID]map[authz.Permission]bool
}

func newAuthzStore() *authzStore {
	return &authzStore{
		orgMemberships:    make(map[uuid.UUID][]authz.OrgMembership),
		schoolMemberships: make(map[uuid.UUID][]authz.SchoolMembership),
		assignments:       make(map[uuid.UUID]map[authz.Permission]bool),
	}
}

func (s *authzStore) OrgMembershipsOf(_ context.Context, userID uuid.UUID) ([]authz.OrgMembership, error) {
	return s.orgMemberships[userID], nil
}

func (s *authzStore) SchoolMembershipsOf(_ context.Context, userID uuid.UUID) ([]authz.SchoolMembership, error) {
	return s.schoolMemberships[userID], nil
}

func (s *authzStore) PermissionAssignments(_ context.Context, roleIDs []uuid.UUID, perm authz.Permission) ([]bool, error) {
	var out []bool
	for _, id := range roleIDs {
		if allow, ok := s.assignments[id][perm]; ok {
			out = append(out, allow)
		}
	}
	return out, nil
}

func (s *authzStore) grantRole(perms map[authz.Permission]bool) uuid.UUID {
	id := uuid.New()
	s.assignments[id] = perms
	return id
}

type noopInvalidator struct{ calls int }

func (n *noopInvalidator) Invalidate(context.Context, uuid.UUID) error {
	n.calls++
	return nil
}

type recordingEnqueuer struct {
	kinds []string
	ids   []uuid.UUID
}

func (r *recordingEnqueuer) EnqueueMembershipCascade(_ context.Context, kind string, id uuid.UUID) error {
	r.kinds = append(r.kinds, kind)
	r.ids = append(r.ids, id)
	return nil
}

func newServiceFixture() (*Service, *mockRepository, *authzStore, *noopInvalidator, *recordingEnqueuer) {
	repo := newMockRepository()
	store := newAuthzStore()
	resolver := authz.NewRoleResolver(store)
	eval := authz.NewEvaluator(store, resolver)
	scopes := authz.NewScopeResolver(authz.NewGraph(store, resolver), true)
	inv := &noopInvalidator{}
	enq := &recordingEnqueuer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, eval, scopes, inv, enq, logger), repo, store, inv, enq
}

func TestListCombinesOrgAndSchoolVisibility(t *testing.T) {
	svc, repo, store, _, _ := newServiceFixture()
	user := authz.Principal{ID: uuid.New()}

	org := uuid.New()
	otherOrg := uuid.New()
	orgSchool := School{ID: uuid.New(), OrganizationID: org, Name: "North", Status: StatusActive}
	mySchool := School{ID: uuid.New(), OrganizationID: otherOrg, Name: "South", Status: StatusActive}
	hidden := School{ID: uuid.New(), OrganizationID: otherOrg, Name: "East", Status: StatusActive}
	repo.schools[orgSchool.ID] = &orgSchool
	repo.schools[mySchool.ID] = &mySchool
	repo.schools[hidden.ID] = &hidden

	orgWide := store.grantRole(map[authz.Permission]bool{authz.PermViewSchool: true})
	myOnly := store.grantRole(map[authz.Permission]bool{authz.PermViewMySchool: true})
	store.orgMemberships[user.ID] = []authz.OrgMembership{{OrganizationID: org, RoleIDs: []uuid.UUID{orgWide}}}
	store.schoolMemberships[user.ID] = []authz.SchoolMembership{
		{SchoolID: mySchool.ID, OrganizationID: otherOrg, RoleIDs: []uuid.UUID{myOnly}},
	}

	items, total, err := svc.List(context.Background(), user, shared.NewPagination(1, 20, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	names := make(map[string]bool, len(items))
	for _, s := range items {
		names[s.Name] = true
	}
	assert.True(t, names["North"], "org-wide grant covers the org's schools")
	assert.True(t, names["South"], "school-level grant covers the member school")
	assert.False(t, names["East"], "school in the other org without a grant stays hidden")
}

func TestRenameAcceptsSchoolLevelGrant(t *testing.T) {
	svc, repo, store, _, _ := newServiceFixture()
	user := authz.Principal{ID: uuid.New()}
	org := uuid.New()
	school := School{ID: uuid.New(), OrganizationID: org, Name: "Before", Status: StatusActive}
	repo.schools[school.ID] = &school

	err := svc.Rename(context.Background(), user, school.ID, "After")
	require.True(t, authz.IsPermissionDenied(err))

	role := store.grantRole(map[authz.Permission]bool{authz.PermEditSchool: true})
	store.schoolMemberships[user.ID] = []authz.SchoolMembership{
		{SchoolID: school.ID, OrganizationID: org, RoleIDs: []uuid.UUID{role}},
	}

	require.NoError(t, svc.Rename(context.Background(), user, school.ID, "After"))
	assert.Equal(t, "After", repo.schools[school.ID].Name)
}

func TestOrgDenyDoesNotVetoSchoolGrant(t *testing.T) {
	svc, repo, store, _, _ := newServiceFixture()
	user := authz.Principal{ID: uuid.New()}
	org := uuid.New()
	school := School{ID: uuid.New(), OrganizationID: org, Name: "Before", Status: StatusActive}
	repo.schools[school.ID] = &school

	denying := store.grantRole(map[authz.Permission]bool{authz.PermEditSchool: false})
	granting := store.grantRole(map[authz.Permission]bool{authz.PermEditSchool: true})
	store.orgMemberships[user.ID] = []authz.OrgMembership{{OrganizationID: org, RoleIDs: []uuid.UUID{denying}}}
	store.schoolMemberships[user.ID] = []authz.SchoolMembership{
		{SchoolID: school.ID, OrganizationID: org, RoleIDs: []uuid.UUID{granting}},
	}

	require.NoError(t, svc.Rename(context.Background(), user, school.ID, "After"),
		"scopes combine with OR, a deny in one scope does not leak into another")
}

func TestSoftDeleteEnqueuesSchoolCascade(t *testing.T) {
	svc, repo, store, _, enq := newServiceFixture()
	user := authz.Principal{ID: uuid.New()}
	org := uuid.New()
	school := School{ID: uuid.New(), OrganizationID: org, Name: "Doomed", Status: StatusActive}
	repo.schools[school.ID] = &school
	role := store.grantRole(map[authz.Permission]bool{authz.PermDeleteSchool: true})
	store.orgMemberships[user.ID] = []authz.OrgMembership{{OrganizationID: org, RoleIDs: []uuid.UUID{role}}}

	require.NoError(t, svc.SoftDelete(context.Background(), user, school.ID))
	assert.Equal(t, StatusInactive, repo.schools[school.ID].Status)
	require.Len(t, enq.ids, 1)
	assert.Equal(t, "school", enq.kinds[0])
}

func TestAddMemberRejectsForeignRoles(t *testing.T) {
	svc, repo, store, inv, _ := newServiceFixture()
	admin := authz.Principal{ID: uuid.New()}
	org := uuid.New()
	school := School{ID: uuid.New(), OrganizationID: org, Name: "School", Status: StatusActive}
	repo.schools[school.ID] = &school

	role := store.grantRole(map[authz.Permission]bool{authz.PermSendInvitation: true})
	store.orgMemberships[admin.ID] = []authz.OrgMembership{{OrganizationID: org, RoleIDs: []uuid.UUID{role}}}

	err := svc.AddMember(context.Background(), admin, school.ID, uuid.New(), []uuid.UUID{uuid.New()})
	require.ErrorIs(t, err, shared.ErrValidation)

	owned := uuid.New()
	repo.orgRoles[org] = map[uuid.UUID]struct{}{owned: {}}
	require.NoError(t, svc.AddMember(context.Background(), admin, school.ID, uuid.New(), []uuid.UUID{owned}))
	assert.Equal(t, 1, inv.calls)
}
