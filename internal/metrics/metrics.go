// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Reset e-mail outcome labels.
const (
	ResetEmailSent    = "sent"
	ResetEmailFailed  = "failed"
	ResetEmailUnknown = "unknown_email"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// Resolve metrics
	IncResolveCacheHit()
	IncResolveCacheMiss()
	ObserveResolveDuration(duration time.Duration)

	// Tag management metrics
	IncTagRegistered()
	IncTagUpdated()
	IncTagRemoved()

	IncScanImageRendered()
	AddScansFlushed(n int64)

	// IncResetEmail counts password reset requests by outcome.
	IncResetEmail(outcome string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
