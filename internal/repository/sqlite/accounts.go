package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/repository"
)

const accountColumns = `id, username, email, password_hash, created_at, updated_at`

func scanAccount(scanner interface{ Scan(dest ...any) error }) (*model.Account, error) {
	var (
		a         model.Account
		createdAt string
		updatedAt string
	)

	if err := scanner.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts a new account.
func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Username,
		account.Email,
		account.PasswordHash,
		formatTime(account.CreatedAt),
		formatTime(account.UpdatedAt),
	)
	if err != nil {
		switch uniqueViolation(err) {
		case "":
			return fmt.Errorf("create account: %w", err)
		case "accounts.email":
			return repository.ErrEmailExists
		default:
			return repository.ErrUsernameExists
		}
	}
	return nil
}

// GetAccountByID retrieves an account by ID.
func (s *Store) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	return s.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

// GetAccountByUsername retrieves an account by username.
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return s.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
}

// GetAccountByEmail retrieves an account by email.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
}

// UpdatePasswordHash replaces an account's password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, formatTime(updatedAt), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(result, repository.ErrAccountNotFound)
}

func (s *Store) getAccount(ctx context.Context, query string, arg string) (*model.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}
