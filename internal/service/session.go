package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/taglink/taglink/internal/auth"
	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/repository"
)

// LoginResult is returned by a successful Login. Token is shown once.
type LoginResult struct {
	Token     string
	Session   *model.Session
	Principal *model.Principal
}

// Login checks credentials and opens a new session.
func (s *AccountService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	principal, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	generated, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        ulid.Make().String(),
		AccountID: principal.AccountID,
		TokenHash: generated.Hash,
		Scopes:    principal.Scopes,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	principal.SessionID = session.ID
	principal.ExpiresAt = session.ExpiresAt

	s.logger.Info("login", "account_id", principal.AccountID, "session_id", session.ID)

	return &LoginResult{
		Token:     generated.Plaintext,
		Session:   session,
		Principal: principal,
	}, nil
}

// AuthenticateSession resolves a session token to its principal.
func (s *AccountService) AuthenticateSession(ctx context.Context, token string) (*model.Principal, error) {
	if !auth.ValidateSessionTokenFormat(token) {
		return nil, ErrUnauthenticated
	}

	tokenHash := auth.HashSessionToken(token)
	now := s.now()

	if p, err := s.principals.GetPrincipal(ctx, tokenHash); err != nil {
		s.logger.Warn("principal_cache_read_failed", "error", err)
	} else if p != nil && now.Before(p.ExpiresAt) {
		return p, nil
	}

	session, err := s.sessions.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !session.IsUsable(now) {
		return nil, ErrUnauthenticated
	}

	account, err := s.accounts.GetAccountByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	principal := &model.Principal{
		AccountID: account.ID,
		Username:  account.Username,
		SessionID: session.ID,
		Scopes:    session.Scopes,
		ExpiresAt: session.ExpiresAt,
	}

	if err := s.principals.SetPrincipal(ctx, tokenHash, principal); err != nil {
		s.logger.Warn("principal_cache_write_failed", "error", err)
	}

	return principal, nil
}

// Logout revokes the session identified by token.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	if !auth.ValidateSessionTokenFormat(token) {
		return ErrUnauthenticated
	}
	tokenHash := auth.HashSessionToken(token)

	session, err := s.sessions.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("failed to get session: %w", err)
	}

	if err := s.sessions.RevokeSession(ctx, session.ID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if err := s.principals.DeletePrincipals(ctx, tokenHash); err != nil {
		s.logger.Warn("principal_cache_evict_failed", "error", err)
	}

	s.logger.Info("logout", "account_id", session.AccountID, "session_id", session.ID)
	return nil
}

// revokeAll revokes every session of accountID and evicts cached principals.
func (s *AccountService) revokeAll(ctx context.Context, accountID string) error {
	hashes, err := s.sessions.RevokeAccountSessions(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	if len(hashes) > 0 {
		if err := s.principals.DeletePrincipals(ctx, hashes...); err != nil {
			s.logger.Warn("principal_cache_evict_failed", "account_id", accountID, "error", err)
		}
	}

	return nil
}
