package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitBlocksForDelay(t *testing.T) {
	limiter := New(50 * time.Millisecond)

	start := time.Now()
	limiter.Wait(context.Background())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestWaitHonorsCancellation(t *testing.T) {
	limiter := New(10 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	limiter.Wait(ctx)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second)
}

func TestWaitZeroDelayReturnsImmediately(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
	}{
		{
			name:  "zero delay",
			delay: 0,
		},
		{
			name:  "negative delay",
			delay: -time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.delay)

			start := time.Now()
			limiter.Wait(context.Background())

			assert.Less(t, time.Since(start), 100*time.Millisecond)
		})
	}
}
