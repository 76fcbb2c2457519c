package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taglink/taglink/internal/model"
)

const (
	// sessionCachePrefix is the Redis key prefix for cached principals.
	sessionCachePrefix = "session:"
	// sessionCacheMaxTTL bounds how long a revoked session can stay usable
	// on another replica that missed the eviction.
	sessionCacheMaxTTL = 5 * time.Minute
)

// GetPrincipal retrieves the principal cached for a session token hash.
// Returns nil on a miss.
func (c *Cache) GetPrincipal(ctx context.Context, tokenHash string) (*model.Principal, error) {
	data, err := c.client.Get(ctx, sessionCachePrefix+tokenHash).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var p model.Principal
	if err := json.Unmarshal(data, &p); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &p, nil
}

// SetPrincipal caches the principal for a session token hash.
// The entry never outlives the session.
func (c *Cache) SetPrincipal(ctx context.Context, tokenHash string, p *model.Principal) error {
	ttl := sessionCacheMaxTTL
	if !p.ExpiresAt.IsZero() {
		until := time.Until(p.ExpiresAt)
		if until <= 0 {
			return nil
		}
		if until < ttl {
			ttl = until
		}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}

	return c.client.Set(ctx, sessionCachePrefix+tokenHash, data, ttl).Err()
}

// DeletePrincipals evicts cached principals for the given token hashes.
func (c *Cache) DeletePrincipals(ctx context.Context, tokenHashes ...string) error {
	if len(tokenHashes) == 0 {
		return nil
	}

	keys := make([]string, len(tokenHashes))
	for i, h := range tokenHashes {
		keys[i] = sessionCachePrefix + h
	}

	return c.client.Del(ctx, keys...).Err()
}
