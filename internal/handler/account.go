package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taglink/taglink/internal/auth"
	"github.com/taglink/taglink/internal/handler/dto"
	"github.com/taglink/taglink/internal/middleware"
	"github.com/taglink/taglink/internal/service"
	"github.com/taglink/taglink/internal/validation"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AccountHandler handles registration, login and password reset.
type AccountHandler struct {
	accounts  *service.AccountService
	cookie    CookieConfig
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, cookie CookieConfig, v *validation.Validator, logger *slog.Logger) *AccountHandler {
	if cookie.Name == "" {
		cookie.Name = middleware.DefaultSessionCookie
	}
	return &AccountHandler{
		accounts:  accounts,
		cookie:    cookie,
		validator: v,
		logger:    logger,
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	account, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToAccountResponse(account))
}

// Login handles POST /api/v1/auth/login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Token:     res.Token,
		TokenType: "Bearer",
		ExpiresAt: res.Session.ExpiresAt,
		Username:  res.Principal.Username,
	})
}

// Logout handles POST /api/v1/auth/logout.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionToken(r, h.cookie.Name)
	if err := h.accounts.Logout(r.Context(), token); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		handleServiceError(w, h.logger, service.ErrUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, dto.PrincipalResponse{
		AccountID: p.AccountID,
		Username:  p.Username,
		Scopes:    p.Scopes,
		ExpiresAt: p.ExpiresAt,
	})
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset.
// The response does not reveal whether the address is registered.
func (h *AccountHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, dto.MessageResponse{
		Message: "If that address is registered, a password reset link has been sent.",
	})
}

// CheckResetToken handles GET /api/v1/auth/password-reset/{token}.
func (h *AccountHandler) CheckResetToken(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.VerifyResetToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ResetTokenResponse{Valid: true, Username: account.Username})
}

// ResetPassword handles POST /api/v1/auth/password-reset/{token}.
func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.SetPasswordRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	if _, err := h.accounts.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Your password has been reset."})
}
