package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncResolveCacheHit()                           {}
func (n *NoopRecorder) IncResolveCacheMiss()                          {}
func (n *NoopRecorder) ObserveResolveDuration(duration time.Duration) {}
func (n *NoopRecorder) IncTagRegistered()                             {}
func (n *NoopRecorder) IncTagUpdated()                                {}
func (n *NoopRecorder) IncTagRemoved()                                {}
func (n *NoopRecorder) IncScanImageRendered()                         {}
func (n *NoopRecorder) AddScansFlushed(count int64)                   {}
func (n *NoopRecorder) IncResetEmail(outcome string)                  {}
