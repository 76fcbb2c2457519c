package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taglink/taglink/internal/model"
)

// Cache key prefixes and TTLs. Tag ids may contain ':', so every key kind
// has its own prefix rather than a suffix on the tag key.
const (
	tagKeyPrefix     = "tag:"
	tagMissKeyPrefix = "tagmiss:"
	tagGenKeyPrefix  = "taggen:"
	scansKeyPrefix   = "scans:"

	// DefaultTagTTL is the TTL for cached tag data.
	DefaultTagTTL = 24 * time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 5 * time.Minute

	// tagGenTTL outlives any resolve that could still be holding an old generation.
	tagGenTTL = DefaultTagTTL
)

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// setTagIfCurrent writes the tag hash only when the generation read before
// the store lookup is still current. KEYS: gen, tag, miss.
var setTagIfCurrent = redis.NewScript(`
if (redis.call('GET', KEYS[1]) or '') ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[2], 'redirect_url', ARGV[2], 'owner_id', ARGV[3], 'updated_at', ARGV[4])
redis.call('PEXPIRE', KEYS[2], ARGV[5])
redis.call('DEL', KEYS[3])
return 1
`)

// setMissIfCurrent is setTagIfCurrent for the negative entry. KEYS: gen, miss.
var setMissIfCurrent = redis.NewScript(`
if (redis.call('GET', KEYS[1]) or '') ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], '1', 'PX', ARGV[2])
return 1
`)

// GetTag retrieves a tag from cache by tag id.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetTag(ctx context.Context, tagID string) (*model.CachedTag, error) {
	result, err := c.client.HGetAll(ctx, tagKeyPrefix+tagID).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 || result["redirect_url"] == "" {
		return nil, ErrCacheMiss
	}

	return &model.CachedTag{
		RedirectURL: result["redirect_url"],
		OwnerID:     result["owner_id"],
		UpdatedAt:   result["updated_at"],
	}, nil
}

// TagGeneration returns the invalidation counter of tagID, "" if it was never
// invalidated. Read it before loading the tag from the store and pass it to
// SetTag or SetNegativeCache.
func (c *Cache) TagGeneration(ctx context.Context, tagID string) (string, error) {
	gen, err := c.client.Get(ctx, tagGenKeyPrefix+tagID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read tag generation: %w", err)
	}
	return gen, nil
}

// SetTag caches tag and clears its negative entry, unless InvalidateTag ran
// since gen was read. A skipped write is not an error.
func (c *Cache) SetTag(ctx context.Context, tag *model.Tag, gen string) error {
	cached := tag.ToCachedTag()
	keys := []string{tagGenKeyPrefix + tag.TagID, tagKeyPrefix + tag.TagID, tagMissKeyPrefix + tag.TagID}

	err := setTagIfCurrent.Run(ctx, c.client, keys,
		gen, cached.RedirectURL, cached.OwnerID, cached.UpdatedAt, DefaultTagTTL.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to cache tag: %w", err)
	}
	return nil
}

// InvalidateTag drops the cached and negative entries of tagID and bumps its
// generation so in-flight backfills that read the old row are discarded.
func (c *Cache) InvalidateTag(ctx context.Context, tagID string) error {
	genKey := tagGenKeyPrefix + tagID

	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, tagGenTTL)
	pipe.Del(ctx, tagKeyPrefix+tagID, tagMissKeyPrefix+tagID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate tag: %w", err)
	}
	return nil
}

// IsNegativelyCached checks if a tag id is in negative cache.
func (c *Cache) IsNegativelyCached(ctx context.Context, tagID string) (bool, error) {
	exists, err := c.client.Exists(ctx, tagMissKeyPrefix+tagID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks a tag id as not found, unless InvalidateTag ran
// since gen was read.
func (c *Cache) SetNegativeCache(ctx context.Context, tagID, gen string) error {
	keys := []string{tagGenKeyPrefix + tagID, tagMissKeyPrefix + tagID}

	if err := setMissIfCurrent.Run(ctx, c.client, keys, gen, NegativeCacheTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}

// IncrementScans increments the pending scan counter for a tag.
// This is fire-and-forget for the redirect path.
func (c *Cache) IncrementScans(ctx context.Context, tagID string) error {
	if err := c.client.Incr(ctx, scansKeyPrefix+tagID).Err(); err != nil {
		return fmt.Errorf("failed to increment scans: %w", err)
	}

	return nil
}

// GetAndResetScans returns the pending scan count for a tag and clears it.
func (c *Cache) GetAndResetScans(ctx context.Context, tagID string) (int64, error) {
	result, err := c.client.GetDel(ctx, scansKeyPrefix+tagID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get and reset scans: %w", err)
	}

	count, err := strconv.ParseInt(result, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse scan count: %w", err)
	}

	return count, nil
}

// RestoreScans adds count back to a tag's pending counter after a failed flush.
func (c *Cache) RestoreScans(ctx context.Context, tagID string, count int64) error {
	if err := c.client.IncrBy(ctx, scansKeyPrefix+tagID, count).Err(); err != nil {
		return fmt.Errorf("failed to restore scans: %w", err)
	}

	return nil
}

// DiscardScans drops the pending counter of a removed tag so a later tag
// registered under the same id starts from zero.
func (c *Cache) DiscardScans(ctx context.Context, tagID string) error {
	if err := c.client.Del(ctx, scansKeyPrefix+tagID).Err(); err != nil {
		return fmt.Errorf("failed to discard scans: %w", err)
	}

	return nil
}

// PendingScanTags returns the tag ids that have unflushed scan counts.
func (c *Cache) PendingScanTags(ctx context.Context) ([]string, error) {
	var tagIDs []string
	var cursor uint64

	for {
		keys, next, err := c.client.Scan(ctx, cursor, scansKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan scan-counter keys: %w", err)
		}

		for _, key := range keys {
			if tagID := TagIDFromScanKey(key); tagID != "" {
				tagIDs = append(tagIDs, tagID)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return tagIDs, nil
}

// TagIDFromScanKey extracts the tag id from a scan counter key.
func TagIDFromScanKey(key string) string {
	tagID, ok := strings.CutPrefix(key, scansKeyPrefix)
	if !ok {
		return ""
	}
	return tagID
}
