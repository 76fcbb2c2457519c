package analytics

import (
	"testing"
	"time"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{-1, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, 2 * time.Second},
		{10, 2 * time.Second},
	}

	for _, tt := range tests {
		low := time.Duration(float64(tt.base) * (1 - jitterFactor))
		high := time.Duration(float64(tt.base) * (1 + jitterFactor))
		for i := 0; i < 20; i++ {
			got := retryDelay(tt.attempt)
			if got < low || got > high {
				t.Fatalf("retryDelay(%d) = %s, want within [%s, %s]", tt.attempt, got, low, high)
			}
		}
	}
}
