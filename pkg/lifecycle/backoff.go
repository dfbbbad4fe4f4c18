package lifecycle

import (
	"math/rand"
	"time"
)

// Backoff implements exponential backoff with jitter for retry loops.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a backoff starting at initial and capped at max.
// Non-positive arguments fall back to 500ms and 10s respectively.
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	return &Backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Sleep waits for the current backoff duration with jitter applied,
// then doubles the duration for the next call.
func (b *Backoff) Sleep() {
	// +/-20% jitter so synchronized agents do not retry in lockstep.
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	sleep := b.current + time.Duration(jitter)

	time.Sleep(sleep)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
}

// Reset returns the backoff to its initial duration.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the current backoff duration without jitter.
func (b *Backoff) Current() time.Duration {
	return b.current
}
