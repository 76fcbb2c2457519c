package analytics

import (
	"math/rand/v2"
	"time"
)

// Store retry delays within one flush. Counts that still fail are restored
// and retried on the next tick, so these stay short.
var retryDelays = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	2 * time.Second,
}

// jitterFactor is the ±fraction of jitter applied to each delay.
const jitterFactor = 0.2

// retryDelay returns the jittered delay after the given failed attempt
// (0-indexed). Attempts past the table reuse the last delay.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(retryDelays) {
		attempt = len(retryDelays) - 1
	}

	base := float64(retryDelays[attempt])
	jitter := (rand.Float64()*2 - 1) * base * jitterFactor
	return time.Duration(base + jitter)
}
