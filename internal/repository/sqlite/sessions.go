package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/repository"
)

// sessionColumns must match the scan order in scanSession.
const sessionColumns = `id, account_id, token_hash, scopes, expires_at, revoked_at, created_at`

func scanSession(scanner interface{ Scan(dest ...any) error }) (*model.Session, error) {
	var (
		s         model.Session
		scopes    string
		expiresAt string
		revokedAt sql.NullString
		createdAt string
	)

	if err := scanner.Scan(&s.ID, &s.AccountID, &s.TokenHash, &scopes, &expiresAt, &revokedAt, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.RevokedAt, err = parseNullableTime(revokedAt); err != nil {
		return nil, err
	}
	if scopes != "" {
		s.Scopes = strings.Split(scopes, ",")
	}
	return &s, nil
}

// CreateSession inserts a new login session.
func (s *Store) CreateSession(ctx context.Context, session *model.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, account_id, token_hash, scopes, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.AccountID,
		session.TokenHash,
		strings.Join(session.Scopes, ","),
		formatTime(session.ExpiresAt),
		formatTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSessionByTokenHash retrieves a session by the hash of its bearer token.
func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`, tokenHash)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// RevokeSession marks a session as revoked.
func (s *Store) RevokeSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return requireRow(result, repository.ErrSessionNotFound)
}

// RevokeAccountSessions revokes every active session of an account and
// returns the token hashes that were revoked.
func (s *Store) RevokeAccountSessions(ctx context.Context, accountID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE account_id = ? AND revoked_at IS NULL RETURNING token_hash`,
		formatTime(time.Now()), accountID)
	if err != nil {
		return nil, fmt.Errorf("revoke account sessions: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan token hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revoked sessions: %w", err)
	}
	return hashes, nil
}
