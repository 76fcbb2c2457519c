package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops every table and re-applies the up migrations in order.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	downSQL, err := fs.ReadFile(migrations.FS, "000001_accounts.down.sql")
	if err != nil {
		return fmt.Errorf("read down migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply down migration: %w", err)
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}

	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("list up migrations: %w", err)
	}
	for _, name := range ups {
		upSQL, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

var seq atomic.Int64

// NewTestAccount creates a test account with sensible defaults.
// The password hash is a placeholder; it does not verify.
func NewTestAccount(t testing.TB, username string) *model.Account {
	t.Helper()
	now := time.Now().UTC()
	return &model.Account{
		ID:           ulid.Make().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestTag creates a test tag owned by ownerID.
func NewTestTag(t testing.TB, tagID, ownerID string) *model.Tag {
	t.Helper()
	now := time.Now().UTC()
	return &model.Tag{
		ID:          ulid.Make().String(),
		TagID:       tagID,
		RedirectURL: "https://example.com/" + tagID,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewTestSession creates an unexpired read/write session for accountID.
func NewTestSession(t testing.TB, accountID string) *model.Session {
	t.Helper()
	now := time.Now().UTC()
	return &model.Session{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		TokenHash: fmt.Sprintf("%064d", seq.Add(1)),
		Scopes:    []string{model.ScopeRead, model.ScopeWrite},
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
}

// UniqueTagID generates a unique tag id for tests.
func UniqueTagID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), seq.Add(1))
}

// UniqueName generates a unique username for tests.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, seq.Add(1))
}
