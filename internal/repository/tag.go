package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/taglink/taglink/internal/model"
)

const tagColumns = `id, tag_id, redirect_url, owner_id, scan_count, created_at, updated_at`

// CreateTag inserts a new tag mapping.
// Returns ErrTagExists if the tag id is already registered.
func (r *Repository) CreateTag(ctx context.Context, tag *model.Tag) error {
	query := `
		INSERT INTO tags (id, tag_id, redirect_url, owner_id, scan_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		tag.ID,
		tag.TagID,
		tag.RedirectURL,
		tag.OwnerID,
		tag.ScanCount,
		tag.CreatedAt,
		tag.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrTagExists
		}
		return fmt.Errorf("failed to create tag: %w", err)
	}

	return nil
}

// GetTagByTagID retrieves a tag by its tag id.
// This is the hot path for redirects.
func (r *Repository) GetTagByTagID(ctx context.Context, tagID string) (*model.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags WHERE tag_id = $1`

	tag, err := scanTag(r.pool.QueryRow(ctx, query, tagID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to get tag by tag id: %w", err)
	}

	return tag, nil
}

// ListTagsByOwner retrieves every tag owned by an account, newest first.
func (r *Repository) ListTagsByOwner(ctx context.Context, ownerID string) ([]*model.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []*model.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}

	return tags, nil
}

// UpdateTagURL sets a new redirect URL. The owner check is part of the write,
// so a tag that changed hands or vanished yields ErrTagNotFound.
func (r *Repository) UpdateTagURL(ctx context.Context, id, ownerID, redirectURL string, updatedAt time.Time) error {
	query := `
		UPDATE tags
		SET redirect_url = $3, updated_at = $4
		WHERE id = $1 AND owner_id = $2
	`

	result, err := r.pool.Exec(ctx, query, id, ownerID, redirectURL, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTagNotFound
	}

	return nil
}

// DeleteTag removes a tag mapping owned by ownerID.
func (r *Repository) DeleteTag(ctx context.Context, id, ownerID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTagNotFound
	}

	return nil
}

// IncrementScanCount adds count to a tag's scan counter.
// This is called from the scan flush worker, not the redirect path.
func (r *Repository) IncrementScanCount(ctx context.Context, tagID string, count int64) error {
	query := `
		UPDATE tags
		SET scan_count = scan_count + $2
		WHERE tag_id = $1
	`

	result, err := r.pool.Exec(ctx, query, tagID, count)
	if err != nil {
		return fmt.Errorf("failed to increment scan count: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTagNotFound
	}

	return nil
}

func scanTag(row pgx.Row) (*model.Tag, error) {
	var tag model.Tag
	err := row.Scan(
		&tag.ID,
		&tag.TagID,
		&tag.RedirectURL,
		&tag.OwnerID,
		&tag.ScanCount,
		&tag.CreatedAt,
		&tag.UpdatedAt,
	)
	return &tag, err
}
