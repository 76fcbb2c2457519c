// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Mail providers.
const (
	MailProviderLog      = "log"
	MailProviderSendGrid = "sendgrid"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// DatabaseURL selects the store: postgres:// for PostgreSQL,
	// sqlite://<path> or file:<path> for SQLite.
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Cache (Redis). Empty disables caching, scan counting and rate limiting.
	RedisURL string `env:"REDIS_URL"`

	// Base URL for resolution links and reset e-mails (e.g., https://tags.example.com)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// SecretKey keys the password reset tokens.
	SecretKey string `env:"SECRET_KEY,required,notEmpty"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled      bool    `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIPerMinute    int     `env:"RATE_LIMIT_API_PER_MINUTE" envDefault:"120"`
	RateLimitAPIBurst        int     `env:"RATE_LIMIT_API_BURST" envDefault:"30"`
	RateLimitRedirectEnabled bool    `env:"RATE_LIMIT_REDIRECT_ENABLED" envDefault:"true"`
	RateLimitRedirectRPS     float64 `env:"RATE_LIMIT_REDIRECT_RPS" envDefault:"100"`
	RateLimitRedirectBurst   int     `env:"RATE_LIMIT_REDIRECT_BURST" envDefault:"20"`
	RateLimitLoginPerMinute  int     `env:"RATE_LIMIT_LOGIN_PER_MINUTE" envDefault:"10"`
	RateLimitResetPerMinute  int     `env:"RATE_LIMIT_RESET_PER_MINUTE" envDefault:"5"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Sessions
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"taglink_session"`

	PasswordResetTTL time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"30m"`

	// Outbound mail
	MailProvider      string  `env:"MAIL_PROVIDER" envDefault:"log"`
	SendGridAPIKey    string  `env:"SENDGRID_API_KEY"`
	MailFromAddress   string  `env:"MAIL_FROM_ADDRESS" envDefault:"no-reply@localhost"`
	MailFromName      string  `env:"MAIL_FROM_NAME" envDefault:"taglink"`
	MailRatePerSecond float64 `env:"MAIL_RATE_PER_SECOND" envDefault:"5"`
	MailBurst         int     `env:"MAIL_BURST" envDefault:"10"`

	// Scan images and counters
	QRSize            int           `env:"QR_SIZE" envDefault:"256"`
	ScanFlushInterval time.Duration `env:"SCAN_FLUSH_INTERVAL" envDefault:"30s"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsSQLite reports whether DatabaseURL points at a SQLite file.
func (c *Config) IsSQLite() bool {
	return strings.HasPrefix(c.DatabaseURL, "sqlite://") || strings.HasPrefix(c.DatabaseURL, "file:")
}

// SQLitePath returns the file path of a SQLite DatabaseURL.
func (c *Config) SQLitePath() string {
	if path, ok := strings.CutPrefix(c.DatabaseURL, "sqlite://"); ok {
		return path
	}
	return c.DatabaseURL
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks combinations the struct tags cannot express.
func (c *Config) Validate() error {
	if !c.IsSQLite() && !strings.HasPrefix(c.DatabaseURL, "postgres://") && !strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must start with postgres://, sqlite:// or file:")
	}

	switch c.MailProvider {
	case MailProviderLog:
	case MailProviderSendGrid:
		if c.SendGridAPIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY is required when MAIL_PROVIDER=%s", MailProviderSendGrid)
		}
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q", c.MailProvider)
	}

	if c.SessionTTL <= 0 || c.PasswordResetTTL <= 0 {
		return fmt.Errorf("SESSION_TTL and PASSWORD_RESET_TTL must be positive")
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Variables from the file named by ENV_FILE (default .env) are added first
// when it exists; the process environment wins over the file.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
