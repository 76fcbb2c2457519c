package sqlite

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/repository"
)

func makeTestSession(accountID, tokenHash string) *model.Session {
	now := time.Now().UTC()
	return &model.Session{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		TokenHash: tokenHash,
		Scopes:    []string{model.ScopeRead, model.ScopeWrite},
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := makeTestAccount(t, s, "alice")

	sess := makeTestSession(a.ID, "hash-1")
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSessionByTokenHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("GetSessionByTokenHash: %v", err)
	}
	if got.AccountID != a.ID {
		t.Errorf("AccountID = %s, want %s", got.AccountID, a.ID)
	}
	if !slices.Equal(got.Scopes, sess.Scopes) {
		t.Errorf("Scopes = %v, want %v", got.Scopes, sess.Scopes)
	}
	if got.IsRevoked() {
		t.Error("new session should not be revoked")
	}

	if _, err := s.GetSessionByTokenHash(ctx, "nope"); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRevokeSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := makeTestAccount(t, s, "alice")

	sess := makeTestSession(a.ID, "hash-1")
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := s.RevokeSession(ctx, sess.ID); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if err := s.RevokeSession(ctx, sess.ID); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Errorf("second RevokeSession: expected ErrSessionNotFound, got %v", err)
	}

	got, _ := s.GetSessionByTokenHash(ctx, "hash-1")
	if !got.IsRevoked() {
		t.Error("session should be revoked")
	}
}

func TestRevokeAccountSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := makeTestAccount(t, s, "alice")
	bob := makeTestAccount(t, s, "bob")

	for _, h := range []string{"a-1", "a-2"} {
		if err := s.CreateSession(ctx, makeTestSession(alice.ID, h)); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}
	if err := s.CreateSession(ctx, makeTestSession(bob.ID, "b-1")); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	hashes, err := s.RevokeAccountSessions(ctx, alice.ID)
	if err != nil {
		t.Fatalf("RevokeAccountSessions: %v", err)
	}
	slices.Sort(hashes)
	if !slices.Equal(hashes, []string{"a-1", "a-2"}) {
		t.Errorf("revoked hashes = %v, want [a-1 a-2]", hashes)
	}

	bobSession, _ := s.GetSessionByTokenHash(ctx, "b-1")
	if bobSession.IsRevoked() {
		t.Error("other account's session should stay active")
	}
}
