// Package ingest holds the two source loops (MQTT, database change feed)
// that translate upstream alarm/change events into alert store mutations,
// plus the reconnect backoff schedule they share.
package ingest

import (
	"context"
	"time"
)

const (
	initialBackoff = 5 * time.Second
	maxBackoff      = 60 * time.Second
)

// Backoff implements the schedule shared by both source loops: starts at
// 5s, doubles after each failed attempt, caps at 60s, resets to 5s after
// a successful connect.
type Backoff struct {
	current time.Duration
}

// NewBackoff returns a Backoff ready for its first failure.
func NewBackoff() *Backoff {
	return &Backoff{current: initialBackoff}
}

// Next returns the delay to wait before the next attempt and advances
// the schedule (doubling, capped).
func (b *Backoff) Next() time.Duration {
	d := b.current
	next := b.current * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	b.current = next
	return d
}

// Reset restores the schedule to its initial value. Both source loops call
// it after a successful connect; receiving a message does not reset it.
func (b *Backoff) Reset() {
	b.current = initialBackoff
}

// Sleep waits for d or until ctx is done, whichever comes first. It
// returns false if ctx was the reason it returned, so the caller can
// distinguish a shutdown from a normal timer expiry and exit promptly —
// within the 2s cancellation bound from §5.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
