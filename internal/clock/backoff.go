package clock

import "time"

// Backoff computes the exponential delay before the k-th restart attempt
// (k starting at 1): min(base*2^(k-1), max). Mirrors spec.md §8's universal
// property and §4.1's crash-handling schedule.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff matches the engine's documented defaults (2s / 15s).
func DefaultBackoff() Backoff {
	return Backoff{Base: 2 * time.Second, Max: 15 * time.Second}
}

// Delay returns the delay before the k-th restart, k >= 1.
func (b Backoff) Delay(k int) time.Duration {
	if k < 1 {
		k = 1
	}
	d := b.Base
	for i := 1; i < k; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}
