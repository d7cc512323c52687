package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orgContext(orgID uuid.UUID) Context {
	return Context{OrganizationID: &orgID}
}

func TestIsAllowedAdminBypass(t *testing.T) {
	store := newFakeStore()
	eval := store.evaluator()
	admin := Principal{ID: uuid.New(), IsAdmin: true}

	// Context references an organization that does not exist anywhere.
	allowed, err := eval.IsAllowed(context.Background(), orgContext(uuid.New()), admin, PermDeleteOrganization)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = eval.IsAllowed(context.Background(), Context{}, admin, PermViewUsers)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestIsAllowedScopeFreeContextDenies(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	grant := store.addRole(map[Permission]bool{PermViewUsers: true})
	store.joinOrg(user.ID, uuid.New(), grant)

	allowed, err := store.evaluator().IsAllowed(context.Background(), Context{}, user, PermViewUsers)
	require.NoError(t, err)
	assert.False(t, allowed, "a check is never silently scope-free")
}

func TestIsAllowedNoMembershipAtScope(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	grant := store.addRole(map[Permission]bool{PermViewUsers: true})
	store.joinOrg(user.ID, uuid.New(), grant)

	allowed, err := store.evaluator().IsAllowed(context.Background(), orgContext(uuid.New()), user, PermViewUsers)
	require.NoError(t, err)
	assert.False(t, allowed)
}

// A grant at the org level and an explicit deny at one school of the same
// org are independent scopes: the org-scoped check passes, the school-scoped
// check fails.
func TestIsAllowedScopesEvaluatedIndependently(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	orgA := uuid.New()
	schoolS := uuid.New()

	orgGrant := store.addRole(map[Permission]bool{PermAttendAsTeacher: true})
	schoolDeny := store.addRole(map[Permission]bool{PermAttendAsTeacher: false})
	store.joinOrg(user.ID, orgA, orgGrant)
	store.joinSchool(user.ID, schoolS, orgA, schoolDeny)
	eval := store.evaluator()

	allowed, err := eval.IsAllowed(context.Background(), orgContext(orgA), user, PermAttendAsTeacher)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = eval.IsAllowed(context.Background(), Context{SchoolIDs: []uuid.UUID{schoolS}}, user, PermAttendAsTeacher)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Both scopes named on one call: the org grant carries it.
	combined := Context{OrganizationID: &orgA, SchoolIDs: []uuid.UUID{schoolS}}
	allowed, err = eval.IsAllowed(context.Background(), combined, user, PermAttendAsTeacher)
	require.NoError(t, err)
	assert.True(t, allowed, "scopes are OR'd: a school denial cannot cancel an org grant")
}

// Grants at either level of the same org suffice on their own.
func TestIsAllowedOrAcrossScopes(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	orgA := uuid.New()
	schoolS := uuid.New()

	orgGrant := store.addRole(map[Permission]bool{PermViewClasses: true})
	schoolGrant := store.addRole(map[Permission]bool{PermViewClasses: true})
	store.joinOrg(user.ID, orgA, orgGrant)
	store.joinSchool(user.ID, schoolS, orgA, schoolGrant)

	actx := Context{OrganizationID: &orgA, SchoolIDs: []uuid.UUID{schoolS}}
	allowed, err := store.evaluator().IsAllowed(context.Background(), actx, user, PermViewClasses)
	require.NoError(t, err)
	assert.True(t, allowed)

	// Drop the org-level grant; the school-level grant still carries it.
	store2 := newFakeStore()
	silent := store2.addRole(map[Permission]bool{})
	schoolGrant2 := store2.addRole(map[Permission]bool{PermViewClasses: true})
	store2.joinOrg(user.ID, orgA, silent)
	store2.joinSchool(user.ID, schoolS, orgA, schoolGrant2)

	allowed, err = store2.evaluator().IsAllowed(context.Background(), actx, user, PermViewClasses)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestIsAllowedDenyWinsWithinScope(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	orgA := uuid.New()
	grant := store.addRole(map[Permission]bool{PermEditSchool: true})
	deny := store.addRole(map[Permission]bool{PermEditSchool: false})
	store.joinOrg(user.ID, orgA, grant, deny)

	allowed, err := store.evaluator().IsAllowed(context.Background(), orgContext(orgA), user, PermEditSchool)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestIsAllowedPropagatesReadFailure(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	orgA := uuid.New()
	grant := store.addRole(map[Permission]bool{PermViewUsers: true})
	store.joinOrg(user.ID, orgA, grant)
	store.orgErr = errors.New("timeout")

	_, err := store.evaluator().IsAllowed(context.Background(), orgContext(orgA), user, PermViewUsers)
	require.Error(t, err)
	assert.False(t, IsPermissionDenied(err))
}

func TestRejectIfNotAllowed(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	orgA := uuid.New()
	grant := store.addRole(map[Permission]bool{PermCreateSchool: true})
	store.joinOrg(user.ID, orgA, grant)
	eval := store.evaluator()

	require.NoError(t, eval.RejectIfNotAllowed(context.Background(), orgContext(orgA), user, PermCreateSchool))

	err := eval.RejectIfNotAllowed(context.Background(), orgContext(orgA), user, PermDeleteSchool)
	require.Error(t, err)
	var denied *PermissionDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, PermDeleteSchool, denied.Permission)
	require.NotNil(t, denied.Context.OrganizationID)
	assert.Equal(t, orgA, *denied.Context.OrganizationID)
}

func TestRejectIfNotAdmin(t *testing.T) {
	eval := newFakeStore().evaluator()
	require.NoError(t, eval.RejectIfNotAdmin(Principal{IsAdmin: true}))
	require.Error(t, eval.RejectIfNotAdmin(Principal{}))
}
