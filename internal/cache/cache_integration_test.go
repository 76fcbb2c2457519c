//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/testutil"
)

func newTestCache(t *testing.T) (context.Context, *Cache) {
	t.Helper()

	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opt)

	c, err := NewFromClient(ctx, client)
	if err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := testutil.FlushRedis(ctx, client); err != nil {
		t.Fatalf("Failed to flush Redis: %v", err)
	}

	return ctx, c
}

func TestIntegrationCache_TagLifecycle(t *testing.T) {
	ctx, c := newTestCache(t)

	if _, err := c.GetTag(ctx, "abc123"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Expected ErrCacheMiss, got %v", err)
	}

	if err := c.SetNegativeCache(ctx, "abc123", ""); err != nil {
		t.Fatalf("SetNegativeCache failed: %v", err)
	}
	neg, err := c.IsNegativelyCached(ctx, "abc123")
	if err != nil || !neg {
		t.Fatalf("IsNegativelyCached = %v, %v; want true", neg, err)
	}

	tag := &model.Tag{TagID: "abc123", RedirectURL: "https://x.test/a", OwnerID: "acct-1", UpdatedAt: time.Now()}
	if err := c.SetTag(ctx, tag, ""); err != nil {
		t.Fatalf("SetTag failed: %v", err)
	}

	neg, _ = c.IsNegativelyCached(ctx, "abc123")
	if neg {
		t.Error("SetTag should clear the negative entry")
	}

	cached, err := c.GetTag(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetTag failed: %v", err)
	}
	if cached.RedirectURL != "https://x.test/a" || cached.OwnerID != "acct-1" {
		t.Errorf("cached = %+v", cached)
	}

	if err := c.InvalidateTag(ctx, "abc123"); err != nil {
		t.Fatalf("InvalidateTag failed: %v", err)
	}
	if _, err := c.GetTag(ctx, "abc123"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after delete, got %v", err)
	}
}

func TestIntegrationCache_ColonTagIDsDoNotCollide(t *testing.T) {
	ctx, c := newTestCache(t)

	// "x" missing, "x:neg" and "x:neg:neg" present.
	if err := c.SetNegativeCache(ctx, "x", ""); err != nil {
		t.Fatalf("SetNegativeCache failed: %v", err)
	}
	for _, id := range []string{"x:neg", "x:neg:neg"} {
		tag := &model.Tag{TagID: id, RedirectURL: "https://x.test/" + id, OwnerID: "acct-1", UpdatedAt: time.Now()}
		if err := c.SetTag(ctx, tag, ""); err != nil {
			t.Fatalf("SetTag(%q) failed: %v", id, err)
		}
	}

	for _, id := range []string{"x:neg", "x:neg:neg"} {
		cached, err := c.GetTag(ctx, id)
		if err != nil || cached.RedirectURL != "https://x.test/"+id {
			t.Errorf("GetTag(%q) = %+v, %v", id, cached, err)
		}
		if neg, _ := c.IsNegativelyCached(ctx, id); neg {
			t.Errorf("%q should not be negatively cached", id)
		}
	}
	if neg, _ := c.IsNegativelyCached(ctx, "x"); !neg {
		t.Error("x should stay negatively cached")
	}

	// A cached "x" must not mark "x:neg" or anything else as missing.
	if err := c.SetTag(ctx, &model.Tag{TagID: "x", RedirectURL: "https://x.test/x", UpdatedAt: time.Now()}, ""); err != nil {
		t.Fatalf("SetTag(x) failed: %v", err)
	}
	if neg, _ := c.IsNegativelyCached(ctx, "x"); neg {
		t.Error("SetTag(x) should clear its negative entry")
	}
}

func TestIntegrationCache_StaleGenerationIsDiscarded(t *testing.T) {
	ctx, c := newTestCache(t)

	gen, err := c.TagGeneration(ctx, "abc123")
	if err != nil {
		t.Fatalf("TagGeneration failed: %v", err)
	}

	if err := c.InvalidateTag(ctx, "abc123"); err != nil {
		t.Fatalf("InvalidateTag failed: %v", err)
	}

	old := &model.Tag{TagID: "abc123", RedirectURL: "https://x.test/old", UpdatedAt: time.Now()}
	if err := c.SetTag(ctx, old, gen); err != nil {
		t.Fatalf("SetTag failed: %v", err)
	}
	if _, err := c.GetTag(ctx, "abc123"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("backfill with a stale generation should be skipped, got %v", err)
	}
	if err := c.SetNegativeCache(ctx, "abc123", gen); err != nil {
		t.Fatalf("SetNegativeCache failed: %v", err)
	}
	if neg, _ := c.IsNegativelyCached(ctx, "abc123"); neg {
		t.Error("negative entry with a stale generation should be skipped")
	}

	current, _ := c.TagGeneration(ctx, "abc123")
	if current == gen {
		t.Fatalf("generation did not change: %q", current)
	}
	if err := c.SetTag(ctx, old, current); err != nil {
		t.Fatalf("SetTag failed: %v", err)
	}
	if _, err := c.GetTag(ctx, "abc123"); err != nil {
		t.Errorf("backfill with the current generation should be stored, got %v", err)
	}
}

func TestIntegrationCache_DiscardScans(t *testing.T) {
	ctx, c := newTestCache(t)

	_ = c.IncrementScans(ctx, "gone")
	if err := c.DiscardScans(ctx, "gone"); err != nil {
		t.Fatalf("DiscardScans failed: %v", err)
	}
	if n, _ := c.GetAndResetScans(ctx, "gone"); n != 0 {
		t.Errorf("scans after discard = %d, want 0", n)
	}
}

func TestIntegrationCache_ScanCounters(t *testing.T) {
	ctx, c := newTestCache(t)

	for i := 0; i < 3; i++ {
		if err := c.IncrementScans(ctx, "t1"); err != nil {
			t.Fatalf("IncrementScans failed: %v", err)
		}
	}
	if err := c.IncrementScans(ctx, "t2"); err != nil {
		t.Fatalf("IncrementScans failed: %v", err)
	}

	pending, err := c.PendingScanTags(ctx)
	if err != nil {
		t.Fatalf("PendingScanTags failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("PendingScanTags = %v, want 2 entries", pending)
	}

	n, err := c.GetAndResetScans(ctx, "t1")
	if err != nil || n != 3 {
		t.Fatalf("GetAndResetScans = %d, %v; want 3", n, err)
	}
	n, _ = c.GetAndResetScans(ctx, "t1")
	if n != 0 {
		t.Errorf("second GetAndResetScans = %d, want 0", n)
	}

	if err := c.RestoreScans(ctx, "t1", 3); err != nil {
		t.Fatalf("RestoreScans failed: %v", err)
	}
	if n, _ = c.GetAndResetScans(ctx, "t1"); n != 3 {
		t.Errorf("GetAndResetScans after restore = %d, want 3", n)
	}
}

func TestIntegrationCache_Principal(t *testing.T) {
	ctx, c := newTestCache(t)

	p := &model.Principal{AccountID: "acct-1", Username: "alice", Scopes: []string{model.ScopeRead}, ExpiresAt: time.Now().Add(time.Hour)}
	if err := c.SetPrincipal(ctx, "hash-1", p); err != nil {
		t.Fatalf("SetPrincipal failed: %v", err)
	}

	got, err := c.GetPrincipal(ctx, "hash-1")
	if err != nil || got == nil {
		t.Fatalf("GetPrincipal = %v, %v", got, err)
	}
	if got.AccountID != "acct-1" {
		t.Errorf("AccountID = %s, want acct-1", got.AccountID)
	}

	if err := c.DeletePrincipals(ctx, "hash-1"); err != nil {
		t.Fatalf("DeletePrincipals failed: %v", err)
	}
	if got, _ := c.GetPrincipal(ctx, "hash-1"); got != nil {
		t.Error("principal should be evicted")
	}

	expired := &model.Principal{AccountID: "acct-2", ExpiresAt: time.Now().Add(-time.Second)}
	if err := c.SetPrincipal(ctx, "hash-2", expired); err != nil {
		t.Fatalf("SetPrincipal(expired) failed: %v", err)
	}
	if got, _ := c.GetPrincipal(ctx, "hash-2"); got != nil {
		t.Error("expired principal should not be cached")
	}
}

func TestIntegrationCache_IPRateLimit(t *testing.T) {
	ctx, c := newTestCache(t)

	for i := 0; i < 3; i++ {
		res, err := c.CheckIPRateLimit(ctx, "login", "10.0.0.1", 0.1, 3)
		if err != nil {
			t.Fatalf("CheckIPRateLimit failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res, err := c.CheckIPRateLimit(ctx, "login", "10.0.0.1", 0.1, 3)
	if err != nil {
		t.Fatalf("CheckIPRateLimit failed: %v", err)
	}
	if res.Allowed {
		t.Error("fourth request should be limited")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", res.RetryAfter)
	}

	other, _ := c.CheckIPRateLimit(ctx, "redirect", "10.0.0.1", 0.1, 3)
	if !other.Allowed {
		t.Error("scopes should have independent buckets")
	}
}

func TestIntegrationCache_AccountRateLimit(t *testing.T) {
	ctx, c := newTestCache(t)

	for i := 0; i < 2; i++ {
		res, err := c.CheckAccountRateLimit(ctx, "acct-1", 1, 2)
		if err != nil {
			t.Fatalf("CheckAccountRateLimit failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res, err := c.CheckAccountRateLimit(ctx, "acct-1", 1, 2)
	if err != nil {
		t.Fatalf("CheckAccountRateLimit failed: %v", err)
	}
	if res.Allowed || res.Remaining != 0 {
		t.Errorf("third request: allowed=%v remaining=%d, want limited", res.Allowed, res.Remaining)
	}
	if !res.ResetAt.After(time.Now()) {
		t.Errorf("ResetAt = %v, want in the future", res.ResetAt)
	}

	unlimited, err := c.CheckAccountRateLimit(ctx, "acct-1", 0, 2)
	if err != nil || !unlimited.Allowed {
		t.Errorf("zero rate should be unlimited, got %+v, %v", unlimited, err)
	}
}
