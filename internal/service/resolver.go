package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taglink/taglink/internal/metrics"
	"github.com/taglink/taglink/internal/model"
	"github.com/taglink/taglink/internal/scan"
)

const scanCountTimeout = 2 * time.Second

// Resolver serves the public scan surface: redirects and scan images.
type Resolver struct {
	registry *TagRegistry
	counter  TagCache
	encoder  *scan.Encoder
	baseURL  string
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewResolver creates a resolver. Scan counts go to counter; nil disables
// counting.
func NewResolver(registry *TagRegistry, counter TagCache, encoder *scan.Encoder, baseURL string, recorder metrics.Recorder, logger *slog.Logger) *Resolver {
	if counter == nil {
		counter = noopCache{}
	}
	if encoder == nil {
		encoder = scan.NewEncoder(0)
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		registry: registry,
		counter:  counter,
		encoder:  encoder,
		baseURL:  baseURL,
		metrics:  recorder,
		logger:   logger,
	}
}

// Resolve returns the tag a scan of tagID should redirect to and records
// the scan in the background.
func (r *Resolver) Resolve(ctx context.Context, tagID string) (*model.Tag, error) {
	tag, err := r.registry.Resolve(ctx, tagID)
	if err != nil {
		return nil, err
	}

	r.countScanAsync(tagID)
	return tag, nil
}

// ResolutionURL returns the absolute redirect URL encoded for tagID.
func (r *Resolver) ResolutionURL(tagID string) string {
	return scan.ResolutionURL(r.baseURL, tagID)
}

// BuildScanImage renders a PNG QR code encoding the resolution URL of tagID.
// The tag does not need to be registered.
func (r *Resolver) BuildScanImage(ctx context.Context, tagID string) ([]byte, string, error) {
	if tagID == "" || len(tagID) > model.MaxTagIDLength {
		return nil, "", ErrInvalidTagID
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	png, err := r.encoder.EncodePNG(r.ResolutionURL(tagID))
	if err != nil {
		return nil, "", fmt.Errorf("failed to render scan image: %w", err)
	}

	r.metrics.IncScanImageRendered()
	return png, scan.ContentTypePNG, nil
}

// countScanAsync increments the scan counter without blocking the redirect.
func (r *Resolver) countScanAsync(tagID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), scanCountTimeout)
		defer cancel()

		if err := r.counter.IncrementScans(ctx, tagID); err != nil {
			r.logger.Warn("scan_count_failed", "tag_id", tagID, "error", err)
		}
	}()
}
