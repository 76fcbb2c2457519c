package dto

import (
	"time"

	"github.com/taglink/taglink/internal/model"
)

// CreateTagRequest is the body of POST /api/v1/tags.
type CreateTagRequest struct {
	TagID       string `json:"tag_id" validate:"required,max=100"`
	RedirectURL string `json:"redirect_url" validate:"required,max=500"`
}

// UpdateTagRequest is the body of PATCH /api/v1/tags/{tagId}.
type UpdateTagRequest struct {
	RedirectURL string `json:"redirect_url" validate:"required,max=500"`
}

// TagResponse represents a tag in API responses.
type TagResponse struct {
	ID            string    `json:"id"`
	TagID         string    `json:"tag_id"`
	RedirectURL   string    `json:"redirect_url"`
	ResolutionURL string    `json:"resolution_url"`
	ScanImageURL  string    `json:"scan_image_url"`
	ScanCount     int64     `json:"scan_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TagListResponse wraps a list of tags.
type TagListResponse struct {
	Data []TagResponse `json:"data"`
}

// ToTagResponse converts a Tag model to its response DTO.
func ToTagResponse(tag *model.Tag, resolutionURL, scanImageURL string) TagResponse {
	return TagResponse{
		ID:            tag.ID,
		TagID:         tag.TagID,
		RedirectURL:   tag.RedirectURL,
		ResolutionURL: resolutionURL,
		ScanImageURL:  scanImageURL,
		ScanCount:     tag.ScanCount,
		CreatedAt:     tag.CreatedAt,
		UpdatedAt:     tag.UpdatedAt,
	}
}
