// Package ratelimit enforces a fixed minimum delay between outbound API calls.
package ratelimit

import (
	"context"
	"time"
)

// Limiter blocks the caller for a fixed interval after every API call.
// There is no burst allowance and no adaptive backoff.
type Limiter struct {
	delay time.Duration
}

// New creates a limiter with the given inter-call delay
func New(delay time.Duration) *Limiter {
	return &Limiter{delay: delay}
}

// Wait blocks for the configured delay or until the context is cancelled
func (l *Limiter) Wait(ctx context.Context) {
	if l == nil || l.delay <= 0 {
		return
	}
	select {
	case <-time.After(l.delay):
	case <-ctx.Done():
	}
}
