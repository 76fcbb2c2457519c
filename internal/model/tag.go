// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"time"
)

// MaxTagIDLength and MaxRedirectURLLength mirror the column widths of the tags table.
const (
	MaxTagIDLength       = 100
	MaxRedirectURLLength = 500
)

// Tag maps a physical tag identifier to a redirect URL.
// Every tag has exactly one owner.
type Tag struct {
	ID          string    `json:"id"`
	TagID       string    `json:"tag_id"`
	RedirectURL string    `json:"redirect_url"`
	OwnerID     string    `json:"owner_id"`
	ScanCount   int64     `json:"scan_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CachedTag represents tag data stored in Redis cache.
// Uses string types for Redis hash compatibility.
type CachedTag struct {
	RedirectURL string `redis:"redirect_url"`
	OwnerID     string `redis:"owner_id"`
	UpdatedAt   string `redis:"updated_at"` // Unix timestamp
}

// ToTag converts CachedTag to the Tag domain model.
func (c *CachedTag) ToTag(tagID string) *Tag {
	tag := &Tag{
		TagID:       tagID,
		RedirectURL: c.RedirectURL,
		OwnerID:     c.OwnerID,
	}

	if c.UpdatedAt != "" {
		if ts, err := strconv.ParseInt(c.UpdatedAt, 10, 64); err == nil {
			tag.UpdatedAt = time.Unix(ts, 0)
		}
	}

	return tag
}

// ToCachedTag converts Tag to its cache representation.
func (t *Tag) ToCachedTag() *CachedTag {
	return &CachedTag{
		RedirectURL: t.RedirectURL,
		OwnerID:     t.OwnerID,
		UpdatedAt:   strconv.FormatInt(t.UpdatedAt.Unix(), 10),
	}
}

// IsOwnedBy reports whether accountID owns the tag.
func (t *Tag) IsOwnedBy(accountID string) bool {
	return accountID != "" && t.OwnerID == accountID
}
