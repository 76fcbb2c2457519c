package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/taglink/taglink/internal/auth"
	"github.com/taglink/taglink/internal/mailer"
	"github.com/taglink/taglink/internal/repository"
	"github.com/taglink/taglink/internal/repository/sqlite"
	"github.com/taglink/taglink/internal/service"
)

type output struct {
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "postgres:// or sqlite:// connection string")
		username    = flag.String("username", "admin", "Account username")
		email       = flag.String("email", "admin@taglink.local", "Account e-mail")
		password    = flag.String("password", os.Getenv("BOOTSTRAP_PASSWORD"), "Account password (default $BOOTSTRAP_PASSWORD)")
		sessionTTL  = flag.Duration("session-ttl", service.DefaultSessionTTL, "Session lifetime")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *password == "" {
		fmt.Fprintln(os.Stderr, "a password is required (-password or BOOTSTRAP_PASSWORD)")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := openStore(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		os.Exit(1)
	}
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := service.NewAccountService(service.AccountConfig{
		Accounts:   store,
		Sessions:   store,
		Hasher:     auth.NewPasswordHasher(auth.DefaultParams),
		Mailer:     mailer.NewLogMailer(logger),
		SessionTTL: *sessionTTL,
		Logger:     logger,
	})

	// Re-running the script against an existing account just logs in again.
	if _, err := accounts.Register(ctx, *username, *email, *password); err != nil && !errors.Is(err, service.ErrDuplicateUser) {
		fmt.Fprintln(os.Stderr, "create account:", err)
		os.Exit(1)
	}

	result, err := accounts.Login(ctx, *username, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create session:", err)
		os.Exit(1)
	}

	out := output{
		AccountID: result.Principal.AccountID,
		Username:  result.Principal.Username,
		Email:     strings.ToLower(strings.TrimSpace(*email)),
		Token:     result.Token,
		Scopes:    result.Session.Scopes,
		ExpiresAt: result.Session.ExpiresAt,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Token)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func openStore(ctx context.Context, databaseURL string) (service.Store, error) {
	if strings.HasPrefix(databaseURL, "sqlite://") || strings.HasPrefix(databaseURL, "file:") {
		store, err := sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	repo, err := repository.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}
