package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taglink/taglink/internal/auth"
	"github.com/taglink/taglink/internal/handler/dto"
	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/service"
	"github.com/taglink/taglink/internal/validation"
)

// TagHandler handles the tag management API.
type TagHandler struct {
	registry  *service.TagRegistry
	resolver  *service.Resolver
	baseURL   string
	validator *validation.Validator
	logger    *slog.Logger
}

// NewTagHandler creates a new TagHandler.
func NewTagHandler(registry *service.TagRegistry, resolver *service.Resolver, baseURL string, v *validation.Validator, logger *slog.Logger) *TagHandler {
	return &TagHandler{
		registry:  registry,
		resolver:  resolver,
		baseURL:   strings.TrimRight(baseURL, "/"),
		validator: v,
		logger:    logger,
	}
}

// List handles GET /api/v1/tags.
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.registry.ListByOwner(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := dto.TagListResponse{Data: make([]dto.TagResponse, 0, len(tags))}
	for _, tag := range tags {
		resp.Data = append(resp.Data, h.toResponse(tag))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /api/v1/tags.
func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTagRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	principal := auth.PrincipalFromContext(r.Context())
	tag, err := h.registry.Register(r.Context(), req.TagID, req.RedirectURL, principal)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("tag_registered",
		"tag_id", tag.TagID,
		"account_id", principal.AccountID,
	)

	w.Header().Set("Location", "/api/v1/tags/"+url.PathEscape(tag.TagID))
	writeJSON(w, http.StatusCreated, h.toResponse(tag))
}

// Get handles GET /api/v1/tags/{tagId}.
func (h *TagHandler) Get(w http.ResponseWriter, r *http.Request) {
	tag, err := h.registry.Get(r.Context(), chi.URLParam(r, "tagId"), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(tag))
}

// Update handles PATCH /api/v1/tags/{tagId}.
func (h *TagHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateTagRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	principal := auth.PrincipalFromContext(r.Context())
	tag, err := h.registry.Update(r.Context(), chi.URLParam(r, "tagId"), req.RedirectURL, principal)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("tag_updated",
		"tag_id", tag.TagID,
		"account_id", principal.AccountID,
	)
	writeJSON(w, http.StatusOK, h.toResponse(tag))
}

// Delete handles DELETE /api/v1/tags/{tagId}.
func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tagID := chi.URLParam(r, "tagId")
	principal := auth.PrincipalFromContext(r.Context())

	if err := h.registry.Remove(r.Context(), tagID, principal); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("tag_removed",
		"tag_id", tagID,
		"account_id", principal.AccountID,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TagHandler) toResponse(tag *model.Tag) dto.TagResponse {
	return dto.ToTagResponse(
		tag,
		h.resolver.ResolutionURL(tag.TagID),
		h.baseURL+"/qr_code/"+url.PathEscape(tag.TagID),
	)
}
