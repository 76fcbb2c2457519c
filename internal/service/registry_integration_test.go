//go:build integration

package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taglink/taglink/internal/cache"
	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/repository/sqlite"
	"github.com/taglink/taglink/internal/testutil"
)

func newRedisRegistry(t *testing.T) (context.Context, *TagRegistry, *model.Principal) {
	t.Helper()

	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opt)
	if err := testutil.FlushRedis(ctx, client); err != nil {
		t.Fatalf("Failed to flush redis: %v", err)
	}
	c, err := cache.NewFromClient(ctx, client)
	if err != nil {
		t.Fatalf("Failed to connect redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	account := testutil.NewTestAccount(t, "alice")
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	owner := &model.Principal{AccountID: account.ID, Username: account.Username}

	return ctx, NewTagRegistry(store, c, nil, nil), owner
}

func TestIntegrationRegistry_ColonTagIDs(t *testing.T) {
	ctx, registry, owner := newRedisRegistry(t)

	urls := map[string]string{
		"foo":         "https://x.test/foo",
		"foo:neg":     "https://x.test/foo-neg",
		"foo:neg:neg": "https://x.test/foo-neg-neg",
	}

	// Cache a miss for "x" before "x:neg" exists.
	if _, err := registry.Resolve(ctx, "x"); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("Resolve(x) error = %v, want ErrTagNotFound", err)
	}
	if _, err := registry.Register(ctx, "x:neg", "https://x.test/x-neg", owner); err != nil {
		t.Fatalf("Register(x:neg): %v", err)
	}
	urls["x:neg"] = "https://x.test/x-neg"

	for _, id := range []string{"foo:neg", "foo", "foo:neg:neg"} {
		if _, err := registry.Register(ctx, id, urls[id], owner); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}

	// Twice each: first from the store, then from the cache.
	order := []string{"foo:neg:neg", "foo", "x:neg", "foo:neg", "foo", "x:neg", "foo:neg:neg", "foo:neg"}
	for _, id := range order {
		tag, err := registry.Resolve(ctx, id)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", id, err)
		}
		if tag.RedirectURL != urls[id] {
			t.Errorf("Resolve(%s) = %s, want %s", id, tag.RedirectURL, urls[id])
		}
	}

	if _, err := registry.Resolve(ctx, "x"); !errors.Is(err, ErrTagNotFound) {
		t.Errorf("Resolve(x) error = %v, want ErrTagNotFound", err)
	}

	if err := registry.Remove(ctx, "foo", owner); err != nil {
		t.Fatalf("Remove(foo): %v", err)
	}
	if _, err := registry.Resolve(ctx, "foo"); !errors.Is(err, ErrTagNotFound) {
		t.Errorf("Resolve(foo) after remove error = %v, want ErrTagNotFound", err)
	}
	tag, err := registry.Resolve(ctx, "foo:neg")
	if err != nil {
		t.Fatalf("Resolve(foo:neg) after removing foo: %v", err)
	}
	if tag.RedirectURL != urls["foo:neg"] {
		t.Errorf("Resolve(foo:neg) = %s, want %s", tag.RedirectURL, urls["foo:neg"])
	}
}

func TestIntegrationRegistry_UpdateVisibleAfterCachedResolve(t *testing.T) {
	ctx, registry, owner := newRedisRegistry(t)

	if _, err := registry.Register(ctx, "abc:1", "https://x.test/a", owner); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := registry.Resolve(ctx, "abc:1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := registry.Update(ctx, "abc:1", "https://x.test/b", owner); err != nil {
		t.Fatalf("Update: %v", err)
	}
	tag, err := registry.Resolve(ctx, "abc:1")
	if err != nil {
		t.Fatalf("Resolve after update: %v", err)
	}
	if tag.RedirectURL != "https://x.test/b" {
		t.Errorf("Resolve = %s, want https://x.test/b", tag.RedirectURL)
	}
}
