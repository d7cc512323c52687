package roles

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
	roles       map[uuid.UUID]*Role
	assignments map[uuid.UUID][]Assignment
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:       make(map[uuid.UUID]*Role),
		assignments: make(map[uuid.UUID][]Assignment),
	}
}

func (m *mockRepository) List(_ context.Context, orgID uuid.UUID, _ shared.Pagination) ([]Role, int, error) {
	var out []Role
	for _, r := range m.roles {
		if r.OrganizationID == orgID && r.Status == StatusActive {
			out = append(out, *r)
		}
	}
	return out, len(out), nil
}

func (m *mockRepository) Find(_ context.Context, id uuid.UUID) (Role, error) {
	r, ok := m.roles[id]
	if !ok || r.Status != StatusActive {
		return Role{}, shared.ErrNotFound
	}
	return *r, nil
}

func (m *mockRepository) Create(_ context.Context, orgID uuid.UUID, name string) (Role, error) {
	r := Role{ID: uuid.New(), OrganizationID: orgID, Name: name, Status: StatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.roles[r.ID] = &r
	return r, nil
}

func (m *mockRepository) Rename(_ context.Context, id uuid.UUID, name string) error {
	r, ok := m.roles[id]
	if !ok || r.Status != StatusActive || r.SystemRole {
		return shared.ErrNotFound
	}
	r.Name = name
	return nil
}

func (m *mockRepository) SoftDelete(_ context.Context, id uuid.UUID) error {
	r, ok := m.roles[id]
	if !ok || r.Status != StatusActive || r.SystemRole {
		return shared.ErrNotFound
	}
	r.Status = StatusInactive
	return nil
}

func (m *mockRepository) SetPermissions(_ context.Context, id uuid.UUID, assignments []Assignment) error {
	m.assignments[id] = assignments
	return nil
}

func (m *mockRepository) ListPermissions(_ context.Context, id uuid.UUID) ([]Assignment, error) {
	return m.assignments[id], nil
}

type authzStore struct {
	orgMemberships map[uuid.UUID][]authz.OrgMembership
	grants         map[uuid.UUID]map[authz.Permission]bool
}

func newAuthzStore() *authzStore {
	return &authzStore{
		orgMemberships: make(map[uuid.UUID][]authz.OrgMembership),
		grants:         make(map[uuid.UUID]map[authz.Permission]bool),
	}
}

func (s *authzStore) OrgMembershipsOf(_ context.Context, userID uuid.UUID) ([]authz.OrgMembership, error) {
	return s.orgMemberships[userID], nil
}

func (s *authzStore) SchoolMembershipsOf(context.Context, uuid.UUID) ([]authz.SchoolMembership, error) {
	return nil, nil
}

func (s *authzStore) PermissionAssignments(_ context.Context, roleIDs []uuid.UUID, perm authz.Permission) ([]bool, error) {
	var out []bool
	for _, id := range roleIDs {
		if allow, ok := s.grants[id][perm]; ok {
			out = append(out, allow)
		}
	}
	return out, nil
}

func (s *authzStore) grantRole(perms map[authz.Permission]bool) uuid.UUID {
	id := uuid.New()
	s.grants[id] = perms
	return id
}

func newServiceFixture() (*Service, *mockRepository, *authzStore) {
	repo := newMockRepository()
	store := newAuthzStore()
	resolver := authz.NewRoleResolver(store)
	eval := authz.NewEvaluator(store, resolver)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, eval, logger), repo, store
}

func memberWith(store *authzStore, userID, orgID uuid.UUID, perms map[authz.Permission]bool) {
	role := store.grantRole(perms)
	store.orgMemberships[userID] = []authz.OrgMembership{{OrganizationID: orgID, RoleIDs: []uuid.UUID{role}}}
}

func TestSetPermissionsValidatesCatalog(t *testing.T) {
	svc, repo, store := newServiceFixture()
	user := authz.Principal{ID: uuid.New()}
	org := uuid.New()
	role := Role{ID: uuid.New(), OrganizationID: org, Name: "Custom", Status: StatusActive}
	repo.roles[role.ID] = &role
	memberWith(store, user.ID, org, map[authz.Permission]bool{authz.PermEditRole: true})

	err := svc.SetPermissions(context.Background(), user, role.ID, []Assignment{
		{Permission: "not_a_permission", Allow: true},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	err = svc.SetPermissions(context.Background(), user, role.ID, []Assignment{
		{Permission: authz.PermViewSchool, Allow: true},
		{Permission: authz.PermViewSchool, Allow: false},
	})
	require.ErrorIs(t, err, shared.ErrValidation, "the same permission cannot be both granted and denied")

	err = svc.SetPermissions(context.Background(), user, role.ID, []Assignment{
		{Permission: authz.PermViewSchool, Allow: true},
		{Permission: authz.PermEditSchool, Allow: false},
	})
	require.NoError(t, err)
	assert.Len(t, repo.assignments[role.ID], 2)
}

func TestSystemRolesAreImmutable(t *testing.T) {
	svc, repo, store := newServiceFixture()
	user := authz.Principal{ID: uuid.New()}
	org := uuid.New()
	system := Role{ID: uuid.New(), OrganizationID: org, Name: "Organization Admin", SystemRole: true, Status: StatusActive}
	repo.roles[system.ID] = &system
	memberWith(store, user.ID, org, map[authz.Permission]bool{
		authz.PermEditRole:   true,
		authz.PermDeleteRole: true,
	})

	require.ErrorIs(t, svc.Rename(context.Background(), user, system.ID, "X"), shared.ErrValidation)
	require.ErrorIs(t, svc.SoftDelete(context.Background(), user, system.ID), shared.ErrValidation)
	require.ErrorIs(t, svc.SetPermissions(context.Background(), user, system.ID, nil), shared.ErrValidation)
}

func TestRoleGuardsUseOwningOrg(t *testing.T) {
	svc, repo, store := newServiceFixture()
	user := authz.Principal{ID: uuid.New()}
	orgA := uuid.New()
	orgB := uuid.New()
	role := Role{ID: uuid.New(), OrganizationID: orgA, Name: "Custom", Status: StatusActive}
	repo.roles[role.ID] = &role

	// Permission held in a different org does not reach orgA's role.
	memberWith(store, user.ID, orgB, map[authz.Permission]bool{authz.PermEditRole: true})
	err := svc.Rename(context.Background(), user, role.ID, "New")
	require.True(t, authz.IsPermissionDenied(err))

	memberWith(store, user.ID, orgA, map[authz.Permission]bool{authz.PermEditRole: true})
	require.NoError(t, svc.Rename(context.Background(), user, role.ID, "New"))
}

func TestListRequiresViewPermission(t *testing.T) {
	svc, repo, store := newServiceFixture()
	user := authz.Principal{ID: uuid.New()}
	org := uuid.New()
	role := Role{ID: uuid.New(), OrganizationID: org, Name: "Custom", Status: StatusActive}
	repo.roles[role.ID] = &role

	_, _, err := svc.List(context.Background(), user, org, shared.NewPagination(1, 20, 0))
	require.True(t, authz.IsPermissionDenied(err))

	memberWith(store, user.ID, org, map[authz.Permission]bool{authz.PermViewRoles: true})
	items, total, err := svc.List(context.Background(), user, org, shared.NewPagination(1, 20, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}
