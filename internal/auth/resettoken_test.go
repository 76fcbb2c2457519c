package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestSigner(t *testing.T, now time.Time) *ResetTokenSigner {
	t.Helper()
	s, err := NewResetTokenSigner(testSecret)
	if err != nil {
		t.Fatalf("NewResetTokenSigner failed: %v", err)
	}
	return s.WithClock(func() time.Time { return now })
}

func TestNewResetTokenSigner_Secrets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"hex key", testSecret, false},
		{"passphrase", "a plain application secret", false},
		{"64 non-hex chars", strings.Repeat("z", 64), false},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResetTokenSigner(tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewResetTokenSigner() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResetToken_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newTestSigner(t, now)

	token, err := s.Issue("acct-1", "fp-1", 30*time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !strings.HasPrefix(token, "v4.local.") {
		t.Errorf("token should be v4.local, got %s", token)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.AccountID != "acct-1" {
		t.Errorf("AccountID = %s, want acct-1", claims.AccountID)
	}
	if claims.Fingerprint != "fp-1" {
		t.Errorf("Fingerprint = %s, want fp-1", claims.Fingerprint)
	}
	if !claims.ExpiresAt.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, now.Add(30*time.Minute))
	}
}

func TestResetToken_Expiry(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	token, err := newTestSigner(t, issued).Issue("acct-1", "fp", 30*time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{"just issued", issued, false},
		{"one second before expiry", issued.Add(30*time.Minute - time.Second), false},
		{"one second after expiry", issued.Add(30*time.Minute + time.Second), true},
		{"a day later", issued.Add(24 * time.Hour), true},
		{"before issue", issued.Add(-time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestSigner(t, tt.at).Verify(token)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidResetToken) {
					t.Errorf("expected ErrInvalidResetToken, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestResetToken_Rejections(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := newTestSigner(t, now)
	token, err := s.Issue("acct-1", "fp", time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	other, err := NewResetTokenSigner("a different secret")
	if err != nil {
		t.Fatalf("NewResetTokenSigner failed: %v", err)
	}

	tests := []struct {
		name   string
		signer *ResetTokenSigner
		token  string
	}{
		{"garbage", s, "not-a-token"},
		{"empty", s, ""},
		{"tampered", s, token[:len(token)-4] + "AAAA"},
		{"other key", other, token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.signer.Verify(tt.token); !errors.Is(err, ErrInvalidResetToken) {
				t.Errorf("expected ErrInvalidResetToken, got %v", err)
			}
		})
	}
}

func TestResetToken_IssueValidation(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t, time.Now())

	if _, err := s.Issue("", "fp", time.Hour); err == nil {
		t.Error("expected error for empty account id")
	}
	if _, err := s.Issue("acct", "fp", 0); err == nil {
		t.Error("expected error for zero ttl")
	}
}
