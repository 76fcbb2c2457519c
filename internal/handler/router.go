package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/taglink/taglink/internal/middleware"
	"github.com/taglink/taglink/internal/model"
)

// RouterConfig collects everything the router mounts.
type RouterConfig struct {
	Logger        *slog.Logger
	IsDevelopment bool

	Index    *Handler
	Health   *HealthHandler
	Tags     *TagHandler
	Redirect *RedirectHandler
	Accounts *AccountHandler

	// Sessions authenticates API requests; usually the account service.
	Sessions   middleware.SessionAuthenticator
	CookieName string

	RateLimit      middleware.RateLimitConfig
	RedirectLimit  middleware.IPLimit
	LoginLimit     middleware.IPLimit
	ResetLimit     middleware.IPLimit
	AllowedOrigins []string
	MaxBodySize    int64

	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger, cfg.IsDevelopment))
	r.Use(middleware.SecurityHeaders(cfg.IsDevelopment))

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/", cfg.Index.Index)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	// Public scan surface.
	r.With(middleware.RateLimitIP(cfg.RateLimit, cfg.RedirectLimit)).Get("/redirect/{tagId}", cfg.Redirect.Redirect)
	r.Get("/qr_code/{tagId}", cfg.Redirect.ScanImage)

	authCfg := middleware.AuthConfig{
		Logger:     cfg.Logger,
		Sessions:   cfg.Sessions,
		CookieName: cfg.CookieName,
	}
	resetLimit := middleware.RateLimitIP(cfg.RateLimit, cfg.ResetLimit)

	// Links in reset e-mails point here.
	r.Get("/reset_password/{token}", cfg.Accounts.CheckResetToken)
	r.With(middleware.MaxBodySize(cfg.MaxBodySize), resetLimit).Post("/reset_password/{token}", cfg.Accounts.ResetPassword)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", cfg.Accounts.Register)
			r.With(middleware.RateLimitIP(cfg.RateLimit, cfg.LoginLimit)).Post("/login", cfg.Accounts.Login)
			r.With(resetLimit).Post("/password-reset", cfg.Accounts.RequestPasswordReset)
			r.Get("/password-reset/{token}", cfg.Accounts.CheckResetToken)
			r.With(resetLimit).Post("/password-reset/{token}", cfg.Accounts.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(authCfg))
				r.Post("/logout", cfg.Accounts.Logout)
				r.Get("/me", cfg.Accounts.Me)
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimitAccount(cfg.RateLimit))

			r.With(middleware.RequireScope(model.ScopeRead)).Get("/", cfg.Tags.List)
			r.With(middleware.RequireScope(model.ScopeWrite)).Post("/", cfg.Tags.Create)
			r.With(middleware.RequireScope(model.ScopeRead)).Get("/{tagId}", cfg.Tags.Get)
			r.With(middleware.RequireScope(model.ScopeWrite)).Patch("/{tagId}", cfg.Tags.Update)
			r.With(middleware.RequireScope(model.ScopeWrite)).Delete("/{tagId}", cfg.Tags.Delete)
		})
	})

	r.NotFound(cfg.Index.NotFound)
	r.MethodNotAllowed(cfg.Index.MethodNotAllowed)

	return r
}
