// Package analytics folds scan counters buffered in Redis into the store.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taglink/taglink/internal/metrics"
	"github.com/taglink/taglink/internal/repository"
)

const (
	// DefaultFlushInterval is how often pending counters are flushed.
	DefaultFlushInterval = 30 * time.Second

	// DefaultMaxRetries is the number of store attempts per tag per flush.
	DefaultMaxRetries = 3
)

// ErrWorkerStopped is returned by Run after Shutdown.
var ErrWorkerStopped = errors.New("worker stopped")

// ScanSource is where redirects buffer scan counts. *cache.Cache implements it.
type ScanSource interface {
	PendingScanTags(ctx context.Context) ([]string, error)
	GetAndResetScans(ctx context.Context, tagID string) (int64, error)
	RestoreScans(ctx context.Context, tagID string, count int64) error
}

// ScanStore persists scan counts.
type ScanStore interface {
	IncrementScanCount(ctx context.Context, tagID string, count int64) error
}

// Worker periodically moves scan counts from the source to the store.
type Worker struct {
	source     ScanSource
	store      ScanStore
	logger     *slog.Logger
	metrics    metrics.Recorder
	interval   time.Duration
	maxRetries int

	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewWorker creates a flush worker. A non-positive interval uses
// DefaultFlushInterval.
func NewWorker(source ScanSource, store ScanStore, logger *slog.Logger, interval time.Duration, recorder metrics.Recorder) *Worker {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		source:     source,
		store:      store,
		logger:     logger.With("component", "analytics.worker", "worker_id", NewWorkerID()),
		metrics:    recorder,
		interval:   interval,
		maxRetries: DefaultMaxRetries,
	}
}

// Run flushes on every tick until ctx is cancelled or Shutdown is called.
// A final flush runs on the way out. Run returns immediately once Shutdown
// has been called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrWorkerStopped
	}
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	w.logger.Info("scan flush worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Detached from the cancelled ctx so the final flush can finish.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := w.Flush(flushCtx); err != nil {
				w.logger.Error("final flush failed", "error", err)
			}
			cancel()
			w.logger.Info("scan flush worker stopped")
			return nil
		case <-ticker.C:
			if _, err := w.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("flush failed", "error", err)
			}
		}
	}
}

// Shutdown stops the worker and waits for the final flush. If Run has not
// started yet, Shutdown flushes directly and Run will refuse to start.
// It matches server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = true
	if !w.started {
		w.mu.Unlock()
		if _, err := w.Flush(ctx); err != nil {
			return fmt.Errorf("failed to flush scans: %w", err)
		}
		return nil
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("scan flush worker shutdown timed out")
		return ctx.Err()
	}
}

// Flush moves every pending counter into the store and returns the number of
// scans persisted. Counts that cannot be stored are put back in the source.
func (w *Worker) Flush(ctx context.Context) (int64, error) {
	tagIDs, err := w.source.PendingScanTags(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending scans: %w", err)
	}

	var flushed int64
	for _, tagID := range tagIDs {
		count, err := w.source.GetAndResetScans(ctx, tagID)
		if err != nil {
			w.logger.Warn("read scan counter failed", "tag_id", tagID, "error", err)
			continue
		}
		if count <= 0 {
			continue
		}

		if err := w.persist(ctx, tagID, count); err != nil {
			if errors.Is(err, repository.ErrTagNotFound) {
				// Tag was removed; its pending scans go with it.
				continue
			}
			w.logger.Error("persist scans failed", "tag_id", tagID, "count", count, "error", err)
			if rerr := w.source.RestoreScans(context.WithoutCancel(ctx), tagID, count); rerr != nil {
				w.logger.Error("restore scans failed, counts lost", "tag_id", tagID, "count", count, "error", rerr)
			}
			continue
		}
		flushed += count
	}

	if flushed > 0 {
		w.metrics.AddScansFlushed(flushed)
		w.logger.Debug("scans flushed", "tags", len(tagIDs), "scans", flushed)
	}
	return flushed, nil
}

func (w *Worker) persist(ctx context.Context, tagID string, count int64) error {
	var err error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		err = w.store.IncrementScanCount(ctx, tagID, count)
		if err == nil || errors.Is(err, repository.ErrTagNotFound) {
			return err
		}
		if attempt < w.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay(attempt - 1)):
			}
		}
	}
	return err
}
