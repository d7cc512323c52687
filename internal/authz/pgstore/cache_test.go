package pgstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyceum-platform/lyceum/internal/authz"
)

type countingReader struct {
	orgCalls    int
	schoolCalls int
	memberships []authz.OrgMembership
	schools     []authz.SchoolMembership
}

func (c *countingReader) OrgMembershipsOf(context.Context, uuid.UUID) ([]authz.OrgMembership, error) {
	c.orgCalls++
	return c.memberships, nil
}

func (c *countingReader) SchoolMembershipsOf(context.Context, uuid.UUID) ([]authz.SchoolMembership, error) {
	c.schoolCalls++
	return c.schools, nil
}

func newCacheFixture(t *testing.T) (*CachedReader, *countingReader) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingReader{
		memberships: []authz.OrgMembership{{OrganizationID: uuid.New(), RoleIDs: []uuid.UUID{uuid.New()}}},
		schools:     []authz.SchoolMembership{{SchoolID: uuid.New(), OrganizationID: uuid.New()}},
	}
	return NewCachedReader(inner, client, time.Minute), inner
}

func TestCachedReaderServesFromCache(t *testing.T) {
	cached, inner := newCacheFixture(t)
	userID := uuid.New()

	first, err := cached.OrgMembershipsOf(context.Background(), userID)
	require.NoError(t, err)
	second, err := cached.OrgMembershipsOf(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.orgCalls, "second read must come from the cache")
}

func TestCachedReaderInvalidate(t *testing.T) {
	cached, inner := newCacheFixture(t)
	userID := uuid.New()

	_, err := cached.OrgMembershipsOf(context.Background(), userID)
	require.NoError(t, err)
	_, err = cached.SchoolMembershipsOf(context.Background(), userID)
	require.NoError(t, err)

	require.NoError(t, cached.Invalidate(context.Background(), userID))

	_, err = cached.OrgMembershipsOf(context.Background(), userID)
	require.NoError(t, err)
	_, err = cached.SchoolMembershipsOf(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.orgCalls)
	assert.Equal(t, 2, inner.schoolCalls)
}

func TestCachedReaderKeysPerUser(t *testing.T) {
	cached, inner := newCacheFixture(t)

	_, err := cached.OrgMembershipsOf(context.Background(), uuid.New())
	require.NoError(t, err)
	_, err = cached.OrgMembershipsOf(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.orgCalls)
}
