// Package main is the entrypoint for the taglink API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/taglink/taglink/internal/analytics"
	"github.com/taglink/taglink/internal/auth"
	"github.com/taglink/taglink/internal/cache"
	"github.com/taglink/taglink/internal/config"
	"github.com/taglink/taglink/internal/handler"
	"github.com/taglink/taglink/internal/mailer"
	"github.com/taglink/taglink/internal/metrics"
	"github.com/taglink/taglink/internal/middleware"
	"github.com/taglink/taglink/internal/repository"
	"github.com/taglink/taglink/internal/repository/sqlite"
	"github.com/taglink/taglink/internal/scan"
	"github.com/taglink/taglink/internal/server"
	"github.com/taglink/taglink/internal/service"
	"github.com/taglink/taglink/internal/validation"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", sanitizeError(err, os.Getenv("DATABASE_URL"), os.Getenv("SECRET_KEY")))
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		cacheClient *cache.Cache
		tagCache    service.TagCache
		principals  service.PrincipalCache
		limiter     middleware.Limiter
		cacheHealth handler.HealthChecker
	)
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return err
		}
		defer cacheClient.Close()
		tagCache, principals, limiter, cacheHealth = cacheClient, cacheClient, cacheClient, cacheClient
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, caching, scan counting and rate limiting disabled")
	}

	recorder := metrics.NewPrometheus()

	resetTokens, err := auth.NewResetTokenSigner(cfg.SecretKey)
	if err != nil {
		return err
	}

	mail := mailer.NewThrottled(newMailer(cfg, logger), cfg.MailRatePerSecond, cfg.MailBurst)

	registry := service.NewTagRegistry(store, tagCache, recorder, logger)
	resolver := service.NewResolver(registry, tagCache, scan.NewEncoder(cfg.QRSize), cfg.BaseURL, recorder, logger)
	accounts := service.NewAccountService(service.AccountConfig{
		Accounts:    store,
		Sessions:    store,
		Principals:  principals,
		Hasher:      auth.NewPasswordHasher(auth.DefaultParams),
		ResetTokens: resetTokens,
		Mailer:      mail,
		BaseURL:     cfg.BaseURL,
		SessionTTL:  cfg.SessionTTL,
		ResetTTL:    cfg.PasswordResetTTL,
		Metrics:     recorder,
		Logger:      logger,
	})

	v := validation.New()
	cookieName := cfg.SessionCookieName
	if cookieName == "" {
		cookieName = middleware.DefaultSessionCookie
	}

	router := handler.NewRouter(handler.RouterConfig{
		Logger:        logger,
		IsDevelopment: cfg.IsDevelopment(),
		Index:         handler.New(),
		Health:        handler.NewHealthHandler(store, cacheHealth, logger),
		Tags:          handler.NewTagHandler(registry, resolver, cfg.BaseURL, v, logger),
		Redirect:      handler.NewRedirectHandler(resolver, logger),
		Accounts: handler.NewAccountHandler(accounts, handler.CookieConfig{
			Name:   cookieName,
			Secure: cfg.IsProduction(),
		}, v, logger),
		Sessions:   accounts,
		CookieName: cookieName,
		RateLimit: middleware.RateLimitConfig{
			Logger:           logger,
			Limiter:          limiter,
			Enabled:          cfg.RateLimitAPIEnabled,
			AccountPerMinute: cfg.RateLimitAPIPerMinute,
			AccountBurst:     cfg.RateLimitAPIBurst,
		},
		RedirectLimit:  redirectLimit(cfg),
		LoginLimit:     perMinute("login", cfg.RateLimitLoginPerMinute),
		ResetLimit:     perMinute("password_reset", cfg.RateLimitResetPerMinute),
		AllowedOrigins: cfg.GetCORSAllowedOrigins(),
		MaxBodySize:    cfg.MaxRequestBodySize,
		Metrics:        recorder.Handler(),
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if cacheClient != nil {
		worker := analytics.NewWorker(cacheClient, store, logger, cfg.ScanFlushInterval, recorder)
		go func() {
			if err := worker.Run(context.Background()); err != nil {
				logger.Error("scan flush worker error", "error", err)
			}
		}()
		srv.OnShutdown("scan-flush-worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"mail_provider", cfg.MailProvider,
	)

	return srv.Run(ctx)
}

// openStore picks the PostgreSQL or SQLite store from DATABASE_URL.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.Store, error) {
	if cfg.IsSQLite() {
		store, err := sqlite.Open(cfg.SQLitePath())
		if err != nil {
			return nil, err
		}
		logger.Info("opened SQLite store", "path", cfg.SQLitePath())
		return store, nil
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return nil, err
	}
	logger.Info("connected to database")

	if cfg.RunMigrations {
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		logger.Info("database migrations applied")
	}
	return repo, nil
}

func newMailer(cfg *config.Config, logger *slog.Logger) mailer.Mailer {
	if cfg.MailProvider == config.MailProviderSendGrid {
		return mailer.NewSendGrid(cfg.SendGridAPIKey, cfg.MailFromAddress, cfg.MailFromName)
	}
	return mailer.NewLogMailer(logger)
}

func redirectLimit(cfg *config.Config) middleware.IPLimit {
	if !cfg.RateLimitRedirectEnabled {
		return middleware.IPLimit{Scope: "redirect"}
	}
	return middleware.IPLimit{
		Scope:     "redirect",
		PerSecond: cfg.RateLimitRedirectRPS,
		Burst:     cfg.RateLimitRedirectBurst,
	}
}

func perMinute(scope string, n int) middleware.IPLimit {
	return middleware.IPLimit{
		Scope:     scope,
		PerSecond: float64(n) / 60,
		Burst:     n,
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "taglink")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username != "" {
			parsed.User = url.User(username)
		} else {
			parsed.User = url.User("redacted")
		}
	}

	return parsed.String()
}

// sanitizeError strips the given secrets, and any password= pair, from err.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		replacement := redactURL(secret)
		if replacement == "" || replacement == secret {
			replacement = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, replacement)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
