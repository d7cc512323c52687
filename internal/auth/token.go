// Package auth resolves bearer tokens to principals. Token issuance is
// handled by the identity provider in front of this service; this package
// only validates opaque tokens against the shared store.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lyceum-platform/lyceum/internal/authz"
)

const tokenKeyPrefix = "auth:token:"

// principalRecord is the stored shape of a token's principal.
type principalRecord struct {
	UserID  uuid.UUID `json:"user_id"`
	Email   string    `json:"email"`
	IsAdmin bool      `json:"is_admin"`
}

// TokenStore looks up opaque bearer tokens in redis.
type TokenStore struct {
	redis *redis.Client
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{redis: client}
}

// Lookup resolves a token to its principal. Unknown tokens yield
// authz.ErrUnauthenticated; transport failures propagate unchanged so an
// outage is never mistaken for a rejected token.
func (s *TokenStore) Lookup(ctx context.Context, token string) (authz.Principal, error) {
	if token == "" {
		return authz.Principal{}, authz.ErrUnauthenticated
	}
	raw, err := s.redis.Get(ctx, tokenKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return authz.Principal{}, authz.ErrUnauthenticated
	}
	if err != nil {
		return authz.Principal{}, fmt.Errorf("auth: token lookup: %w", err)
	}
	var rec principalRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return authz.Principal{}, fmt.Errorf("auth: token decode: %w", err)
	}
	return authz.Principal{ID: rec.UserID, Email: rec.Email, IsAdmin: rec.IsAdmin}, nil
}
