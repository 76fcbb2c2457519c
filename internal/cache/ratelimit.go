package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitAccountPrefix = "ratelimit:account:"
	rateLimitIPPrefix      = "ratelimit:ip:"
	rateLimitAccountTTL    = 120 * time.Second
	// Low-rate IP buckets (login, reset) refill slowly; keep them long enough.
	rateLimitIPMinTTL = 10 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucket refills at ARGV[1] tokens per second up to ARGV[2] and takes
// one token per call. Times are in milliseconds.
// Returns {allowed, retry_after_ms, remaining, full_in_ms}.
var tokenBucket = redis.NewScript(`
local rate = tonumber(ARGV[1]) / 1000
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
  tokens = math.min(burst, tokens + (now - ts) * rate)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], ttl)

return {allowed, wait, math.floor(tokens), math.ceil((burst - tokens) / rate)}
`)

// CheckAccountRateLimit takes a token from the account's bucket.
// A non-positive rate means unlimited.
func (c *Cache) CheckAccountRateLimit(ctx context.Context, accountID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: time.Now()}, nil
	}

	return c.takeToken(ctx, rateLimitAccountPrefix+accountID, float64(ratePerMinute)/60, burst, rateLimitAccountTTL)
}

// CheckIPRateLimit takes a token from the bucket of ip within scope, such as
// "redirect" or "login". Only a hash of the IP is stored.
func (c *Cache) CheckIPRateLimit(ctx context.Context, scope, ip string, ratePerSecond float64, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: time.Now()}, nil
	}

	key := rateLimitIPPrefix + scope + ":" + hashIP(ip)
	ttl := time.Duration(ipBucketTTL(ratePerSecond, burst)) * time.Second
	return c.takeToken(ctx, key, ratePerSecond, burst, ttl)
}

// ipBucketTTL is the time in seconds a drained bucket needs to refill, with a floor.
func ipBucketTTL(ratePerSecond float64, burst int) int {
	ttl := rateLimitIPMinTTL
	if ratePerSecond > 0 {
		if refill := time.Duration(float64(burst) / ratePerSecond * float64(time.Second)); refill > ttl {
			ttl = refill
		}
	}
	return int(ttl.Seconds())
}

func (c *Cache) takeToken(ctx context.Context, key string, ratePerSecond float64, burst int, ttl time.Duration) (*RateLimitResult, error) {
	now := time.Now()

	res, err := tokenBucket.Run(ctx, c.client, []string{key},
		ratePerSecond, burst, now.UnixMilli(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run token bucket: %w", err)
	}
	if len(res) != 4 {
		return nil, fmt.Errorf("unexpected token bucket reply of %d values", len(res))
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Duration(res[3]) * time.Millisecond),
	}, nil
}

// hashIP returns the first 8 bytes of the IP's SHA-256 as hex.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
