//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taglink/taglink/internal/testutil"
)

// ============================================================================
// Tag Repository Integration Tests
// ============================================================================

func TestIntegrationTagRepository_CreateAndGet(t *testing.T) {
	ctx, repo := newTestEnv(t)
	owner := createAccount(t, ctx, repo)

	tag := testutil.NewTestTag(t, testutil.UniqueTagID("create"), owner)
	if err := repo.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	got, err := repo.GetTagByTagID(ctx, tag.TagID)
	if err != nil {
		t.Fatalf("GetTagByTagID failed: %v", err)
	}
	if got.RedirectURL != tag.RedirectURL {
		t.Errorf("RedirectURL mismatch: got %q, want %q", got.RedirectURL, tag.RedirectURL)
	}
	if got.OwnerID != owner {
		t.Errorf("OwnerID mismatch: got %q, want %q", got.OwnerID, owner)
	}
}

func TestIntegrationTagRepository_Duplicate(t *testing.T) {
	ctx, repo := newTestEnv(t)
	owner := createAccount(t, ctx, repo)

	tagID := testutil.UniqueTagID("dup")
	if err := repo.CreateTag(ctx, testutil.NewTestTag(t, tagID, owner)); err != nil {
		t.Fatalf("CreateTag (first) failed: %v", err)
	}

	err := repo.CreateTag(ctx, testutil.NewTestTag(t, tagID, owner))
	if !errors.Is(err, ErrTagExists) {
		t.Fatalf("Expected ErrTagExists, got %v", err)
	}
}

func TestIntegrationTagRepository_UpdateAndDeleteOwnerScoped(t *testing.T) {
	ctx, repo := newTestEnv(t)
	owner := createAccount(t, ctx, repo)
	other := createAccount(t, ctx, repo)

	tag := testutil.NewTestTag(t, testutil.UniqueTagID("upd"), owner)
	if err := repo.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	if err := repo.UpdateTagURL(ctx, tag.ID, other, "https://x.test/no", time.Now()); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("Expected ErrTagNotFound for non-owner update, got %v", err)
	}
	if err := repo.UpdateTagURL(ctx, tag.ID, owner, "https://x.test/b", time.Now()); err != nil {
		t.Fatalf("UpdateTagURL failed: %v", err)
	}

	got, err := repo.GetTagByTagID(ctx, tag.TagID)
	if err != nil {
		t.Fatalf("GetTagByTagID failed: %v", err)
	}
	if got.RedirectURL != "https://x.test/b" {
		t.Errorf("RedirectURL = %q, want https://x.test/b", got.RedirectURL)
	}

	if err := repo.DeleteTag(ctx, tag.ID, other); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("Expected ErrTagNotFound for non-owner delete, got %v", err)
	}
	if err := repo.DeleteTag(ctx, tag.ID, owner); err != nil {
		t.Fatalf("DeleteTag failed: %v", err)
	}
	if _, err := repo.GetTagByTagID(ctx, tag.TagID); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("Expected ErrTagNotFound after delete, got %v", err)
	}
}

func TestIntegrationTagRepository_ListAndScanCount(t *testing.T) {
	ctx, repo := newTestEnv(t)
	owner := createAccount(t, ctx, repo)

	for i := 0; i < 3; i++ {
		if err := repo.CreateTag(ctx, testutil.NewTestTag(t, testutil.UniqueTagID("list"), owner)); err != nil {
			t.Fatalf("CreateTag failed: %v", err)
		}
	}

	tags, err := repo.ListTagsByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ListTagsByOwner failed: %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("Expected 3 tags, got %d", len(tags))
	}

	if err := repo.IncrementScanCount(ctx, tags[0].TagID, 4); err != nil {
		t.Fatalf("IncrementScanCount failed: %v", err)
	}
	got, _ := repo.GetTagByTagID(ctx, tags[0].TagID)
	if got.ScanCount != 4 {
		t.Errorf("ScanCount = %d, want 4", got.ScanCount)
	}
}

// ============================================================================
// Test Helpers
// ============================================================================

func newTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()

	databaseURL := testutil.RequireEnv(t, "DATABASE_URL")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	repo, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("Failed to acquire DB lock: %v", err)
	}
	t.Cleanup(func() {
		if err := unlock(); err != nil {
			t.Errorf("Failed to release DB lock: %v", err)
		}
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("Failed to reset schema: %v", err)
	}

	return ctx, repo
}

func createAccount(t *testing.T, ctx context.Context, repo *Repository) string {
	t.Helper()
	account := testutil.NewTestAccount(t, testutil.UniqueName("user"))
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return account.ID
}
