package dto

import (
	"time"

	"github.com/taglink/taglink/internal/model"
)

// RegisterRequest is the body of POST /api/v1/auth/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=80"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=80"`
	Password string `json:"password" validate:"required,max=128"`
}

// PasswordResetRequest is the body of POST /api/v1/auth/password-reset.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email,max=120"`
}

// SetPasswordRequest is the body of POST /api/v1/auth/password-reset/{token}.
type SetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ToAccountResponse converts an Account model to its response DTO.
func ToAccountResponse(a *model.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		CreatedAt: a.CreatedAt,
	}
}

// LoginResponse is returned on successful login. The token is shown once.
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
}

// PrincipalResponse describes the caller of GET /api/v1/auth/me.
type PrincipalResponse struct {
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetTokenResponse reports a valid reset token.
type ResetTokenResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username"`
}
