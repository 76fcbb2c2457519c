package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ResolveCacheHits       uint64
	ResolveCacheMisses     uint64
	ResolveDurationCount   uint64
	ResolveDurationTotalNs int64
	TagsRegistered         uint64
	TagsUpdated            uint64
	TagsRemoved            uint64
	ScanImagesRendered     uint64
	ScansFlushed           int64
	ResetEmailsSent        uint64
	ResetEmailsFailed      uint64
	ResetEmailsUnknown     uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	resolveCacheHits       atomic.Uint64
	resolveCacheMisses     atomic.Uint64
	resolveDurationCount   atomic.Uint64
	resolveDurationTotalNs atomic.Int64
	tagsRegistered         atomic.Uint64
	tagsUpdated            atomic.Uint64
	tagsRemoved            atomic.Uint64
	scanImagesRendered     atomic.Uint64
	scansFlushed           atomic.Int64
	resetEmailsSent        atomic.Uint64
	resetEmailsFailed      atomic.Uint64
	resetEmailsUnknown     atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		ResolveCacheHits:       m.resolveCacheHits.Load(),
		ResolveCacheMisses:     m.resolveCacheMisses.Load(),
		ResolveDurationCount:   m.resolveDurationCount.Load(),
		ResolveDurationTotalNs: m.resolveDurationTotalNs.Load(),
		TagsRegistered:         m.tagsRegistered.Load(),
		TagsUpdated:            m.tagsUpdated.Load(),
		TagsRemoved:            m.tagsRemoved.Load(),
		ScanImagesRendered:     m.scanImagesRendered.Load(),
		ScansFlushed:           m.scansFlushed.Load(),
		ResetEmailsSent:        m.resetEmailsSent.Load(),
		ResetEmailsFailed:      m.resetEmailsFailed.Load(),
		ResetEmailsUnknown:     m.resetEmailsUnknown.Load(),
	}
}

func (m *InMemoryRecorder) IncResolveCacheHit()  { m.resolveCacheHits.Add(1) }
func (m *InMemoryRecorder) IncResolveCacheMiss() { m.resolveCacheMisses.Add(1) }

// ObserveResolveDuration records resolve duration.
func (m *InMemoryRecorder) ObserveResolveDuration(duration time.Duration) {
	m.resolveDurationCount.Add(1)
	m.resolveDurationTotalNs.Add(duration.Nanoseconds())
}

func (m *InMemoryRecorder) IncTagRegistered()     { m.tagsRegistered.Add(1) }
func (m *InMemoryRecorder) IncTagUpdated()        { m.tagsUpdated.Add(1) }
func (m *InMemoryRecorder) IncTagRemoved()        { m.tagsRemoved.Add(1) }
func (m *InMemoryRecorder) IncScanImageRendered() { m.scanImagesRendered.Add(1) }
func (m *InMemoryRecorder) AddScansFlushed(n int64) {
	m.scansFlushed.Add(n)
}

// IncResetEmail counts a reset request outcome. Unknown outcomes are ignored.
func (m *InMemoryRecorder) IncResetEmail(outcome string) {
	switch outcome {
	case ResetEmailSent:
		m.resetEmailsSent.Add(1)
	case ResetEmailFailed:
		m.resetEmailsFailed.Add(1)
	case ResetEmailUnknown:
		m.resetEmailsUnknown.Add(1)
	}
}
