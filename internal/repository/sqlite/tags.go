package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/repository"
)

// tagColumns must match the scan order in scanTag.
const tagColumns = `id, tag_id, redirect_url, owner_id, scan_count, created_at, updated_at`

func scanTag(scanner interface{ Scan(dest ...any) error }) (*model.Tag, error) {
	var (
		t         model.Tag
		createdAt string
		updatedAt string
	)

	if err := scanner.Scan(&t.ID, &t.TagID, &t.RedirectURL, &t.OwnerID, &t.ScanCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTag inserts a new tag mapping.
// Returns repository.ErrTagExists if the tag id is already registered.
func (s *Store) CreateTag(ctx context.Context, tag *model.Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, tag_id, redirect_url, owner_id, scan_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tag.ID,
		tag.TagID,
		tag.RedirectURL,
		tag.OwnerID,
		tag.ScanCount,
		formatTime(tag.CreatedAt),
		formatTime(tag.UpdatedAt),
	)
	if err != nil {
		if uniqueViolation(err) != "" {
			return repository.ErrTagExists
		}
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// GetTagByTagID retrieves a tag by its tag id.
func (s *Store) GetTagByTagID(ctx context.Context, tagID string) (*model.Tag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE tag_id = ?`, tagID)

	tag, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrTagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return tag, nil
}

// ListTagsByOwner returns every tag owned by ownerID, newest first.
func (s *Store) ListTagsByOwner(ctx context.Context, ownerID string) ([]*model.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := []*model.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

// UpdateTagURL sets a new redirect URL for a tag owned by ownerID.
func (s *Store) UpdateTagURL(ctx context.Context, id, ownerID, redirectURL string, updatedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tags SET redirect_url = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		redirectURL, formatTime(updatedAt), id, ownerID)
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}
	return requireRow(result, repository.ErrTagNotFound)
}

// DeleteTag removes a tag owned by ownerID.
func (s *Store) DeleteTag(ctx context.Context, id, ownerID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return requireRow(result, repository.ErrTagNotFound)
}

// IncrementScanCount adds count to a tag's scan counter.
func (s *Store) IncrementScanCount(ctx context.Context, tagID string, count int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tags SET scan_count = scan_count + ? WHERE tag_id = ?`, count, tagID)
	if err != nil {
		return fmt.Errorf("increment scan count: %w", err)
	}
	return requireRow(result, repository.ErrTagNotFound)
}

// requireRow maps a zero-row write to notFound.
func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
