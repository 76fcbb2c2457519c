package model

import (
	"slices"
	"time"
)

// Scope constants for session authorization.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeRead, ScopeWrite}

// DefaultSessionScopes are granted on interactive login.
var DefaultSessionScopes = []string{ScopeRead, ScopeWrite}

// Session is a login session. Only the hash of its bearer token is stored.
type Session struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	TokenHash string     `json:"-"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsRevoked returns true if the session has been revoked.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsExpired returns true if the session is past its expiry at the given time.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsUsable reports whether the session can authenticate requests at now.
func (s *Session) IsUsable(now time.Time) bool {
	return !s.IsRevoked() && !s.IsExpired(now)
}

// Principal is the authenticated caller of a request.
// Handlers pass it explicitly to every operation that authorizes.
type Principal struct {
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	SessionID string    `json:"session_id,omitempty"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasScope checks if the principal has a specific scope.
// Write implies read.
func (p *Principal) HasScope(scope string) bool {
	if scope == ScopeRead && slices.Contains(p.Scopes, ScopeWrite) {
		return true
	}
	return slices.Contains(p.Scopes, scope)
}
