package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taglink/taglink/internal/service"
)

// RedirectHandler serves the public scan endpoints.
type RedirectHandler struct {
	resolver *service.Resolver
	logger   *slog.Logger
}

// NewRedirectHandler creates a new RedirectHandler.
func NewRedirectHandler(resolver *service.Resolver, logger *slog.Logger) *RedirectHandler {
	return &RedirectHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// Redirect handles GET /redirect/{tagId}.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	tagID := chi.URLParam(r, "tagId")
	start := time.Now()

	tag, err := h.resolver.Resolve(r.Context(), tagID)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, service.ErrTagNotFound) {
			h.logger.Info("redirect_not_found",
				"tag_id", tagID,
				"duration_ms", float64(duration.Microseconds())/1000,
			)
			writeError(w, http.StatusNotFound, "TAG_NOT_FOUND", "Tag not found")
			return
		}

		h.logger.Error("redirect_error",
			"tag_id", tagID,
			"error", err,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.logger.Info("redirect_success",
		"tag_id", tagID,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, tag.RedirectURL, http.StatusFound)
}

// ScanImage handles GET /qr_code/{tagId}. The image encodes the redirect
// endpoint, so it is served whether or not the tag is registered.
func (h *RedirectHandler) ScanImage(w http.ResponseWriter, r *http.Request) {
	tagID := chi.URLParam(r, "tagId")

	png, contentType, err := h.resolver.BuildScanImage(r.Context(), tagID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Content-Disposition", `inline; filename="qr_code.png"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
