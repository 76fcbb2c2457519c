// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/taglink/taglink/internal/cache"
	"github.com/taglink/taglink/internal/model"
)

// Service errors.
var (
	ErrDuplicateTag       = errors.New("tag already registered")
	ErrTagNotFound        = errors.New("tag not found")
	ErrForbidden          = errors.New("not the owner of this tag")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidTagID       = errors.New("invalid tag id")
	ErrInvalidURL         = errors.New("invalid redirect URL")
	ErrURLTooLong         = errors.New("redirect URL too long")
	ErrDuplicateUser      = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidPassword    = errors.New("password must be between 8 and 128 characters")
	ErrAccountNotFound    = errors.New("account not found")
	ErrMailDelivery       = errors.New("could not send email")
	ErrMailThrottled      = errors.New("too many emails, try again later")
)

// TagStore persists tag mappings.
type TagStore interface {
	CreateTag(ctx context.Context, tag *model.Tag) error
	GetTagByTagID(ctx context.Context, tagID string) (*model.Tag, error)
	ListTagsByOwner(ctx context.Context, ownerID string) ([]*model.Tag, error)
	UpdateTagURL(ctx context.Context, id, ownerID, redirectURL string, updatedAt time.Time) error
	DeleteTag(ctx context.Context, id, ownerID string) error
	IncrementScanCount(ctx context.Context, tagID string, count int64) error
}

// AccountStore persists accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// SessionStore persists login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)
	RevokeSession(ctx context.Context, id string) error
	RevokeAccountSessions(ctx context.Context, accountID string) ([]string, error)
}

// Store is the full persistence surface. Both the PostgreSQL repository and
// the SQLite store implement it.
type Store interface {
	TagStore
	AccountStore
	SessionStore
	Ping(ctx context.Context) error
	Close() error
}

// TagCache is the resolution cache. Backfills carry the generation read
// before the store lookup; InvalidateTag bumps it, so a backfill racing a
// write is dropped instead of caching the old row.
type TagCache interface {
	GetTag(ctx context.Context, tagID string) (*model.CachedTag, error)
	TagGeneration(ctx context.Context, tagID string) (string, error)
	SetTag(ctx context.Context, tag *model.Tag, gen string) error
	InvalidateTag(ctx context.Context, tagID string) error
	IsNegativelyCached(ctx context.Context, tagID string) (bool, error)
	SetNegativeCache(ctx context.Context, tagID, gen string) error
	IncrementScans(ctx context.Context, tagID string) error
	DiscardScans(ctx context.Context, tagID string) error
}

// PrincipalCache caches authenticated sessions by token hash.
type PrincipalCache interface {
	GetPrincipal(ctx context.Context, tokenHash string) (*model.Principal, error)
	SetPrincipal(ctx context.Context, tokenHash string, p *model.Principal) error
	DeletePrincipals(ctx context.Context, tokenHashes ...string) error
}

// noopCache is used when Redis is not configured.
type noopCache struct{}

func (noopCache) GetTag(context.Context, string) (*model.CachedTag, error) {
	return nil, cache.ErrCacheMiss
}
func (noopCache) TagGeneration(context.Context, string) (string, error)   { return "", nil }
func (noopCache) SetTag(context.Context, *model.Tag, string) error        { return nil }
func (noopCache) InvalidateTag(context.Context, string) error             { return nil }
func (noopCache) IsNegativelyCached(context.Context, string) (bool, error) { return false, nil }
func (noopCache) SetNegativeCache(context.Context, string, string) error  { return nil }
func (noopCache) IncrementScans(context.Context, string) error            { return nil }
func (noopCache) DiscardScans(context.Context, string) error              { return nil }

func (noopCache) GetPrincipal(context.Context, string) (*model.Principal, error) { return nil, nil }
func (noopCache) SetPrincipal(context.Context, string, *model.Principal) error  { return nil }
func (noopCache) DeletePrincipals(context.Context, ...string) error             { return nil }
