package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taglink/taglink/internal/cache"
	"github.com/taglink/taglink/internal/metrics"
	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/repository"
)

// TagRegistry manages tag to URL mappings.
type TagRegistry struct {
	store   TagStore
	cache   TagCache
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewTagRegistry creates a registry. A nil cache disables caching.
func NewTagRegistry(store TagStore, tagCache TagCache, recorder metrics.Recorder, logger *slog.Logger) *TagRegistry {
	if tagCache == nil {
		tagCache = noopCache{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TagRegistry{
		store:   store,
		cache:   tagCache,
		metrics: recorder,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register binds tagID to redirectURL for owner.
func (r *TagRegistry) Register(ctx context.Context, tagID, redirectURL string, owner *model.Principal) (*model.Tag, error) {
	if owner == nil {
		return nil, ErrUnauthenticated
	}
	if err := ValidateTagID(tagID); err != nil {
		return nil, err
	}
	if err := ValidateRedirectURL(redirectURL); err != nil {
		return nil, err
	}

	now := r.now()
	tag := &model.Tag{
		ID:          ulid.Make().String(),
		TagID:       tagID,
		RedirectURL: redirectURL,
		OwnerID:     owner.AccountID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.store.CreateTag(ctx, tag); err != nil {
		if errors.Is(err, repository.ErrTagExists) {
			return nil, ErrDuplicateTag
		}
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	// Drop any negative entry left by scans of the unregistered id.
	r.evict(ctx, tagID)
	r.metrics.IncTagRegistered()

	return tag, nil
}

// Get returns a tag the requester owns.
func (r *TagRegistry) Get(ctx context.Context, tagID string, requester *model.Principal) (*model.Tag, error) {
	if requester == nil {
		return nil, ErrUnauthenticated
	}
	return r.getOwned(ctx, tagID, requester)
}

// ListByOwner returns every tag owned by the requester, newest first.
func (r *TagRegistry) ListByOwner(ctx context.Context, owner *model.Principal) ([]*model.Tag, error) {
	if owner == nil {
		return nil, ErrUnauthenticated
	}

	tags, err := r.store.ListTagsByOwner(ctx, owner.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// Update changes the redirect URL of a tag the requester owns.
func (r *TagRegistry) Update(ctx context.Context, tagID, newURL string, requester *model.Principal) (*model.Tag, error) {
	if requester == nil {
		return nil, ErrUnauthenticated
	}

	tag, err := r.getOwned(ctx, tagID, requester)
	if err != nil {
		return nil, err
	}
	if err := ValidateRedirectURL(newURL); err != nil {
		return nil, err
	}

	now := r.now()
	if err := r.store.UpdateTagURL(ctx, tag.ID, requester.AccountID, newURL, now); err != nil {
		if errors.Is(err, repository.ErrTagNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}

	r.evict(ctx, tagID)
	r.metrics.IncTagUpdated()

	tag.RedirectURL = newURL
	tag.UpdatedAt = now
	return tag, nil
}

// Remove deletes a tag the requester owns.
func (r *TagRegistry) Remove(ctx context.Context, tagID string, requester *model.Principal) error {
	if requester == nil {
		return ErrUnauthenticated
	}

	tag, err := r.getOwned(ctx, tagID, requester)
	if err != nil {
		return err
	}

	if err := r.store.DeleteTag(ctx, tag.ID, requester.AccountID); err != nil {
		if errors.Is(err, repository.ErrTagNotFound) {
			return ErrTagNotFound
		}
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	r.evict(ctx, tagID)
	if err := r.cache.DiscardScans(ctx, tagID); err != nil {
		r.logger.Warn("tag_scans_discard_failed", "tag_id", tagID, "error", err)
	}
	r.metrics.IncTagRemoved()

	return nil
}

// Resolve looks up a tag for redirection.
// Flow: cache -> negative cache -> store -> backfill.
func (r *TagRegistry) Resolve(ctx context.Context, tagID string) (*model.Tag, error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveResolveDuration(time.Since(start))
	}()

	if ValidateTagID(tagID) != nil {
		return nil, ErrTagNotFound
	}

	cached, err := r.cache.GetTag(ctx, tagID)
	if err == nil {
		r.metrics.IncResolveCacheHit()
		return cached.ToTag(tagID), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		r.logger.Warn("tag_cache_read_failed", "tag_id", tagID, "error", err)
	}
	r.metrics.IncResolveCacheMiss()

	negative, err := r.cache.IsNegativelyCached(ctx, tagID)
	if err != nil {
		r.logger.Warn("tag_negative_cache_read_failed", "tag_id", tagID, "error", err)
	}
	if negative {
		return nil, ErrTagNotFound
	}

	// Read before the store so a write landing in between invalidates the backfill.
	gen, genErr := r.cache.TagGeneration(ctx, tagID)
	if genErr != nil {
		r.logger.Warn("tag_cache_generation_read_failed", "tag_id", tagID, "error", genErr)
	}

	tag, err := r.store.GetTagByTagID(ctx, tagID)
	if err != nil {
		if errors.Is(err, repository.ErrTagNotFound) {
			if genErr == nil {
				if err := r.cache.SetNegativeCache(ctx, tagID, gen); err != nil {
					r.logger.Warn("tag_negative_cache_write_failed", "tag_id", tagID, "error", err)
				}
			}
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to resolve tag: %w", err)
	}

	if genErr == nil {
		if err := r.cache.SetTag(ctx, tag, gen); err != nil {
			r.logger.Warn("tag_cache_write_failed", "tag_id", tagID, "error", err)
		}
	}

	return tag, nil
}

func (r *TagRegistry) getOwned(ctx context.Context, tagID string, requester *model.Principal) (*model.Tag, error) {
	if ValidateTagID(tagID) != nil {
		return nil, ErrTagNotFound
	}

	tag, err := r.store.GetTagByTagID(ctx, tagID)
	if err != nil {
		if errors.Is(err, repository.ErrTagNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}

	if !tag.IsOwnedBy(requester.AccountID) {
		return nil, ErrForbidden
	}

	return tag, nil
}

// evict drops the cached entries for tagID and invalidates in-flight
// backfills. Failures are logged; the cache TTL bounds how long a stale entry
// can survive.
func (r *TagRegistry) evict(ctx context.Context, tagID string) {
	if err := r.cache.InvalidateTag(ctx, tagID); err != nil {
		r.logger.Warn("tag_cache_evict_failed", "tag_id", tagID, "error", err)
	}
}
