package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A role granting view_school_20110 in one org makes every school of that
// org visible and nothing else.
func TestResolveScopeSchoolsOrgWide(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	orgA := uuid.New()
	grant := store.addRole(map[Permission]bool{PermViewSchool: true})
	store.joinOrg(user.ID, orgA, grant)

	pred, err := store.scopeResolver(false).ResolveScope(context.Background(), KindSchool, user, DefaultTiers(KindSchool))
	require.NoError(t, err)
	require.Equal(t, BelongsToOrgIn{OrgIDs: []uuid.UUID{orgA}}, pred)

	schoolInA := fixtureRow{owningOrg: orgA}
	schoolElsewhere := fixtureRow{owningOrg: uuid.New()}
	assert.True(t, matches(pred, schoolInA, fixtureRow{}))
	assert.False(t, matches(pred, schoolElsewhere, fixtureRow{}))
}

func TestResolveScopeAdminUnrestricted(t *testing.T) {
	store := newFakeStore()
	admin := Principal{ID: uuid.New(), IsAdmin: true}

	for _, kind := range []EntityKind{KindOrganization, KindUser, KindSchool, KindClass, KindProgram} {
		pred, err := store.scopeResolver(true).ResolveScope(context.Background(), kind, admin, DefaultTiers(kind))
		require.NoError(t, err)
		assert.Equal(t, Always{}, pred)
	}
}

func TestResolveScopeNoGrantIsEmptyNotError(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	silent := store.addRole(map[Permission]bool{})
	store.joinOrg(user.ID, uuid.New(), silent)

	pred, err := store.scopeResolver(false).ResolveScope(context.Background(), KindSchool, user, DefaultTiers(KindSchool))
	require.NoError(t, err)
	assert.Equal(t, Never{}, pred)
}

func TestResolveScopeOrganizationsAlwaysMine(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	orgA, orgB := uuid.New(), uuid.New()
	silent := store.addRole(map[Permission]bool{})
	store.joinOrg(user.ID, orgA, silent)
	store.joinOrg(user.ID, orgB, silent)

	pred, err := store.scopeResolver(false).ResolveScope(context.Background(), KindOrganization, user, nil)
	require.NoError(t, err)
	leaf, ok := pred.(BelongsToOrgIn)
	require.True(t, ok)
	assert.ElementsMatch(t, []uuid.UUID{orgA, orgB}, leaf.OrgIDs)
}

func TestResolveScopeUserFallbackSelfAndEmail(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New(), Email: "pat@example.com"}

	pred, err := store.scopeResolver(false).ResolveScope(context.Background(), KindUser, user, DefaultTiers(KindUser))
	require.NoError(t, err)

	viewer := fixtureRow{id: user.ID, email: user.Email}
	self := fixtureRow{id: user.ID, email: user.Email}
	sibling := fixtureRow{id: uuid.New(), email: user.Email}
	stranger := fixtureRow{id: uuid.New(), email: "other@example.com"}
	assert.True(t, matches(pred, self, viewer))
	assert.True(t, matches(pred, sibling, viewer), "accounts sharing the email are claimable")
	assert.False(t, matches(pred, stranger, viewer))
}

func TestResolveScopeUserClassTierUsesBothRelations(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	orgA := uuid.New()
	grant := store.addRole(map[Permission]bool{PermViewClassUsers: true})
	store.joinOrg(user.ID, orgA, grant)

	pred, err := store.scopeResolver(false).ResolveScope(context.Background(), KindUser, user, DefaultTiers(KindUser))
	require.NoError(t, err)

	taught := fixtureRow{id: uuid.New(), classmateOf: map[uuid.UUID]string{user.ID: "teaching"}}
	studied := fixtureRow{id: uuid.New(), classmateOf: map[uuid.UUID]string{user.ID: "studying"}}
	unrelated := fixtureRow{id: uuid.New()}
	assert.True(t, matches(pred, taught, fixtureRow{}))
	assert.True(t, matches(pred, studied, fixtureRow{}), "either relation alone must reach the row")
	assert.False(t, matches(pred, unrelated, fixtureRow{}))
}

// Granting the broader tier on top of narrower ones must never shrink the
// visible set.
func TestResolveScopeTierMonotonicity(t *testing.T) {
	user := Principal{ID: uuid.New()}
	orgA, orgB := uuid.New(), uuid.New()
	schoolS := uuid.New()

	narrow := newFakeStore()
	schoolGrant := narrow.addRole(map[Permission]bool{PermViewMySchool: true})
	narrow.joinSchool(user.ID, schoolS, orgB, schoolGrant)
	narrowPred, err := narrow.scopeResolver(true).ResolveScope(context.Background(), KindSchool, user, DefaultTiers(KindSchool))
	require.NoError(t, err)

	// Same memberships plus an org-wide grant in a different org.
	wide := newFakeStore()
	schoolGrant2 := wide.addRole(map[Permission]bool{PermViewMySchool: true})
	orgGrant := wide.addRole(map[Permission]bool{PermViewSchool: true})
	wide.joinSchool(user.ID, schoolS, orgB, schoolGrant2)
	wide.joinOrg(user.ID, orgA, orgGrant)
	widePred, err := wide.scopeResolver(true).ResolveScope(context.Background(), KindSchool, user, DefaultTiers(KindSchool))
	require.NoError(t, err)

	rows := []fixtureRow{
		{owningOrg: orgA},
		{owningOrg: orgB, viaSchools: []uuid.UUID{schoolS}},
		{owningOrg: orgB},
		{owningOrg: uuid.New()},
	}
	for i, row := range rows {
		if matches(narrowPred, row, fixtureRow{}) {
			assert.True(t, matches(widePred, row, fixtureRow{}),
				"row %d visible under the narrow grant disappeared under the broader one", i)
		}
	}
}

// With the collapse flag on, a school grant whose owning org already grants
// org-wide visibility is dropped; the result set must be identical either way.
func TestResolveScopeSchoolSubsetShortCircuit(t *testing.T) {
	user := Principal{ID: uuid.New()}
	orgA := uuid.New()
	schoolS := uuid.New()

	build := func(collapse bool) Predicate {
		store := newFakeStore()
		orgGrant := store.addRole(map[Permission]bool{PermViewSchool: true})
		schoolGrant := store.addRole(map[Permission]bool{PermViewMySchool: true})
		store.joinOrg(user.ID, orgA, orgGrant)
		store.joinSchool(user.ID, schoolS, orgA, schoolGrant)
		pred, err := store.scopeResolver(collapse).ResolveScope(context.Background(), KindSchool, user, DefaultTiers(KindSchool))
		require.NoError(t, err)
		return pred
	}

	collapsed := build(true)
	full := build(false)

	assert.Equal(t, BelongsToOrgIn{OrgIDs: []uuid.UUID{orgA}}, collapsed,
		"school join is redundant when its org is covered by the org-wide grant")
	_, isOr := full.(Or)
	assert.True(t, isOr)

	rows := []fixtureRow{
		{owningOrg: orgA, viaSchools: []uuid.UUID{schoolS}},
		{owningOrg: orgA},
		{owningOrg: uuid.New(), viaSchools: []uuid.UUID{uuid.New()}},
	}
	for i, row := range rows {
		assert.Equal(t, matches(full, row, fixtureRow{}), matches(collapsed, row, fixtureRow{}),
			"row %d diverged between collapsed and full predicates", i)
	}
}

// The short-circuit must not fire when a school grant lives in an org outside
// the org-wide set.
func TestResolveScopeSchoolShortCircuitNotASubset(t *testing.T) {
	user := Principal{ID: uuid.New()}
	orgA, orgB := uuid.New(), uuid.New()
	schoolS := uuid.New()

	store := newFakeStore()
	orgGrant := store.addRole(map[Permission]bool{PermViewSchool: true})
	schoolGrant := store.addRole(map[Permission]bool{PermViewMySchool: true})
	store.joinOrg(user.ID, orgA, orgGrant)
	store.joinSchool(user.ID, schoolS, orgB, schoolGrant)

	pred, err := store.scopeResolver(true).ResolveScope(context.Background(), KindSchool, user, DefaultTiers(KindSchool))
	require.NoError(t, err)

	inSchoolS := fixtureRow{owningOrg: orgB, viaSchools: []uuid.UUID{schoolS}}
	assert.True(t, matches(pred, inSchoolS, fixtureRow{}), "the out-of-set school grant must survive")
}

func TestResolveScopeTaxonomy(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}
	orgA := uuid.New()
	grant := store.addRole(map[Permission]bool{PermViewPrograms: true})
	store.joinOrg(user.ID, orgA, grant)

	pred, err := store.scopeResolver(false).ResolveScope(context.Background(), KindProgram, user, DefaultTiers(KindProgram))
	require.NoError(t, err)

	owned := fixtureRow{owningOrg: orgA}
	system := fixtureRow{owningOrg: uuid.New(), system: true}
	shared := fixtureRow{owningOrg: uuid.New(), sharedWith: []uuid.UUID{orgA}}
	foreign := fixtureRow{owningOrg: uuid.New()}
	assert.True(t, matches(pred, owned, fixtureRow{}))
	assert.True(t, matches(pred, system, fixtureRow{}))
	assert.True(t, matches(pred, shared, fixtureRow{}))
	assert.False(t, matches(pred, foreign, fixtureRow{}))
}

// A principal with no organization membership sees exactly the system rows.
func TestResolveScopeTaxonomySystemOnlyFallback(t *testing.T) {
	store := newFakeStore()
	user := Principal{ID: uuid.New()}

	pred, err := store.scopeResolver(false).ResolveScope(context.Background(), KindGrade, user, DefaultTiers(KindGrade))
	require.NoError(t, err)
	assert.Equal(t, SystemFlagged{}, pred)
}
