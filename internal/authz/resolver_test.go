package authz

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDenyOverridesGrant(t *testing.T) {
	store := newFakeStore()
	grantA := store.addRole(map[Permission]bool{PermViewSchool: true})
	grantB := store.addRole(map[Permission]bool{PermViewSchool: true})
	deny := store.addRole(map[Permission]bool{PermViewSchool: false})
	resolver := NewRoleResolver(store)

	roles := []uuid.UUID{grantA, grantB, deny}
	for i := 0; i < 10; i++ {
		rand.Shuffle(len(roles), func(a, b int) { roles[a], roles[b] = roles[b], roles[a] })
		decision, err := resolver.Resolve(context.Background(), roles, PermViewSchool)
		require.NoError(t, err)
		assert.False(t, decision.Allowed, "one explicit deny must win regardless of order")
	}
}

func TestResolveAbsenceDenies(t *testing.T) {
	store := newFakeStore()
	silent := store.addRole(map[Permission]bool{PermViewClasses: true})
	resolver := NewRoleResolver(store)

	decision, err := resolver.Resolve(context.Background(), []uuid.UUID{silent}, PermViewSchool)
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "no role mentioning the permission means denied")
}

func TestResolveAllGrantsAllow(t *testing.T) {
	store := newFakeStore()
	a := store.addRole(map[Permission]bool{PermViewUsers: true})
	b := store.addRole(map[Permission]bool{PermViewUsers: true, PermViewSchool: false})
	silent := store.addRole(map[Permission]bool{})
	resolver := NewRoleResolver(store)

	decision, err := resolver.Resolve(context.Background(), []uuid.UUID{a, b, silent}, PermViewUsers)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestResolveDuplicateRolesIdempotent(t *testing.T) {
	store := newFakeStore()
	grant := store.addRole(map[Permission]bool{PermViewUsers: true})
	resolver := NewRoleResolver(store)

	decision, err := resolver.Resolve(context.Background(), []uuid.UUID{grant, grant, grant}, PermViewUsers)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestResolveEmptyRoleSet(t *testing.T) {
	store := newFakeStore()
	resolver := NewRoleResolver(store)

	decision, err := resolver.Resolve(context.Background(), nil, PermViewUsers)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestResolvePropagatesReadFailure(t *testing.T) {
	store := newFakeStore()
	grant := store.addRole(map[Permission]bool{PermViewUsers: true})
	store.roleErr = errors.New("connection reset")
	resolver := NewRoleResolver(store)

	_, err := resolver.Resolve(context.Background(), []uuid.UUID{grant}, PermViewUsers)
	require.Error(t, err, "a failed read must never decay into a denial")
}
