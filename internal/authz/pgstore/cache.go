package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lyceum-platform/lyceum/internal/authz"
)

// CachedReader decorates a MembershipReader with a short-lived redis cache.
// The core itself never caches; this lives in the storage layer and every
// membership or role write path must call Invalidate for the affected user.
type CachedReader struct {
	inner authz.MembershipReader
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedReader constructs a CachedReader.
func NewCachedReader(inner authz.MembershipReader, client *redis.Client, ttl time.Duration) *CachedReader {
	return &CachedReader{inner: inner, redis: client, ttl: ttl}
}

func orgKey(userID uuid.UUID) string    { return "authz:orgms:" + userID.String() }
func schoolKey(userID uuid.UUID) string { return "authz:schoolms:" + userID.String() }

// OrgMembershipsOf serves from cache when possible.
func (c *CachedReader) OrgMembershipsOf(ctx context.Context, userID uuid.UUID) ([]authz.OrgMembership, error) {
	var cached []authz.OrgMembership
	if ok, err := c.get(ctx, orgKey(userID), &cached); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}
	memberships, err := c.inner.OrgMembershipsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.set(ctx, orgKey(userID), memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// SchoolMembershipsOf serves from cache when possible.
func (c *CachedReader) SchoolMembershipsOf(ctx context.Context, userID uuid.UUID) ([]authz.SchoolMembership, error) {
	var cached []authz.SchoolMembership
	if ok, err := c.get(ctx, schoolKey(userID), &cached); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}
	memberships, err := c.inner.SchoolMembershipsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.set(ctx, schoolKey(userID), memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// Invalidate drops the cached memberships for a user. Called by membership
// and role write paths so no stale decision outlives a write.
func (c *CachedReader) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.redis.Del(ctx, orgKey(userID), schoolKey(userID)).Err()
}

func (c *CachedReader) get(ctx context.Context, key string, target any) (bool, error) {
	raw, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pgstore: cache get: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return false, fmt.Errorf("pgstore: cache decode: %w", err)
	}
	return true, nil
}

func (c *CachedReader) set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("pgstore: cache encode: %w", err)
	}
	if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("pgstore: cache set: %w", err)
	}
	return nil
}
