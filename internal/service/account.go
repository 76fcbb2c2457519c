package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taglink/taglink/internal/auth"
	"github.com/taglink/taglink/internal/mailer"
	"github.com/taglink/taglink/internal/metrics"
	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/repository"
)

// Default lifetimes.
const (
	DefaultSessionTTL       = 7 * 24 * time.Hour
	DefaultPasswordResetTTL = 30 * time.Minute
)

// AccountConfig wires an AccountService.
type AccountConfig struct {
	Accounts    AccountStore
	Sessions    SessionStore
	Principals  PrincipalCache
	Hasher      *auth.PasswordHasher
	ResetTokens *auth.ResetTokenSigner
	Mailer      mailer.Mailer
	BaseURL     string
	SessionTTL  time.Duration
	ResetTTL    time.Duration
	Metrics     metrics.Recorder
	Logger      *slog.Logger
}

// AccountService handles registration, login sessions and password resets.
type AccountService struct {
	accounts    AccountStore
	sessions    SessionStore
	principals  PrincipalCache
	hasher      *auth.PasswordHasher
	resetTokens *auth.ResetTokenSigner
	mailer      mailer.Mailer
	baseURL     string
	sessionTTL  time.Duration
	resetTTL    time.Duration
	metrics     metrics.Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewAccountService creates an AccountService.
func NewAccountService(cfg AccountConfig) *AccountService {
	s := &AccountService{
		accounts:    cfg.Accounts,
		sessions:    cfg.Sessions,
		principals:  cfg.Principals,
		hasher:      cfg.Hasher,
		resetTokens: cfg.ResetTokens,
		mailer:      cfg.Mailer,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		sessionTTL:  cfg.SessionTTL,
		resetTTL:    cfg.ResetTTL,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}

	if s.principals == nil {
		s.principals = noopCache{}
	}
	if s.hasher == nil {
		s.hasher = auth.NewPasswordHasher(auth.DefaultParams)
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.resetTTL <= 0 {
		s.resetTTL = DefaultPasswordResetTTL
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNoop()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Register creates an account. The e-mail address is stored lowercased.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*model.Account, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	account := &model.Account{
		ID:           ulid.Make().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, fmt.Errorf("%w: username taken", ErrDuplicateUser)
		case errors.Is(err, repository.ErrEmailExists):
			return nil, fmt.Errorf("%w: email taken", ErrDuplicateUser)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account_registered", "account_id", account.ID, "username", account.Username)
	return account, nil
}

// Authenticate checks credentials and returns the matching principal.
// It does not create a session.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*model.Principal, error) {
	account, err := s.accounts.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return &model.Principal{
		AccountID: account.ID,
		Username:  account.Username,
		Scopes:    append([]string(nil), model.DefaultSessionScopes...),
	}, nil
}

// GetAccount returns an account by id.
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// IssueResetToken creates a signed, expiring reset token for accountID.
// The token is bound to the current password hash, so it stops working once
// the password changes.
func (s *AccountService) IssueResetToken(ctx context.Context, accountID string, ttl time.Duration) (string, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = s.resetTTL
	}

	token, err := s.resetTokens.Issue(account.ID, auth.QuickHash(account.PasswordHash), ttl)
	if err != nil {
		return "", fmt.Errorf("failed to issue reset token: %w", err)
	}
	return token, nil
}

// VerifyResetToken returns the account a valid reset token names.
func (s *AccountService) VerifyResetToken(ctx context.Context, token string) (*model.Account, error) {
	claims, err := s.resetTokens.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	account, err := s.accounts.GetAccountByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	current := auth.QuickHash(account.PasswordHash)
	if subtle.ConstantTimeCompare([]byte(current), []byte(claims.Fingerprint)) != 1 {
		return nil, ErrInvalidToken
	}

	return account, nil
}

// SetPassword replaces the password of accountID and signs out every session.
func (s *AccountService) SetPassword(ctx context.Context, accountID, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.accounts.UpdatePasswordHash(ctx, accountID, hash, s.now()); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.revokeAll(ctx, accountID); err != nil {
		return err
	}

	s.logger.Info("password_changed", "account_id", accountID)
	return nil
}

// ResetPassword verifies token and sets the new password.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) (*model.Account, error) {
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}

	account, err := s.VerifyResetToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.SetPassword(ctx, account.ID, newPassword); err != nil {
		return nil, err
	}
	return account, nil
}

// RequestPasswordReset e-mails a reset link to the account registered under
// email. Unknown addresses are logged and otherwise treated as success.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.logger.Warn("password_reset_unknown_email", "email", email)
			s.metrics.IncResetEmail(metrics.ResetEmailUnknown)
			return nil
		}
		return fmt.Errorf("failed to get account: %w", err)
	}

	token, err := s.IssueResetToken(ctx, account.ID, s.resetTTL)
	if err != nil {
		return err
	}

	msg := mailer.PasswordReset(account.Email, account.Username, s.ResetLink(token))
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.IncResetEmail(metrics.ResetEmailFailed)
		s.logger.Error("password_reset_email_failed", "account_id", account.ID, "error", err)
		if errors.Is(err, mailer.ErrThrottled) {
			return ErrMailThrottled
		}
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	s.metrics.IncResetEmail(metrics.ResetEmailSent)
	s.logger.Info("password_reset_email_sent", "account_id", account.ID)
	return nil
}

// ResetLink returns the URL a user follows to redeem token.
func (s *AccountService) ResetLink(token string) string {
	return s.baseURL + "/reset_password/" + token
}
