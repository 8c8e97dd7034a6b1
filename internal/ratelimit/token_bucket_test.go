package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_DrainsThenRejects(t *testing.T) {
	limiter := NewTokenBucket(5, 1)
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	for i, wantRemaining := range []int{4, 3, 2, 1, 0} {
		d := limiter.Check("10.0.0.1", now)
		require.True(t, d.Allowed, "call %d should be admitted", i+1)
		assert.Equal(t, wantRemaining, d.Remaining)
		assert.Equal(t, 5, d.Limit)
	}

	d := limiter.Check("10.0.0.1", now)
	require.False(t, d.Allowed)
	assert.Equal(t, int64(1000), d.ResetMs)
}

func TestTokenBucket_PerClientIsolation(t *testing.T) {
	limiter := NewTokenBucket(5, 1)
	now := time.Now()

	for i := 0; i < 6; i++ {
		limiter.Check("10.0.0.1", now)
	}

	d := limiter.Check("10.0.0.2", now)
	require.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestTokenBucket_RefillBoundedByElapsedAndCapacity(t *testing.T) {
	limiter := NewTokenBucket(5, 2)
	now := time.Now()

	// Drain to zero
	for i := 0; i < 5; i++ {
		require.True(t, limiter.Check("c", now).Allowed)
	}
	require.False(t, limiter.Check("c", now).Allowed)

	// After t seconds idle, at most t*R tokens come back
	now = now.Add(1 * time.Second)
	admitted := 0
	for i := 0; i < 10; i++ {
		if limiter.Check("c", now).Allowed {
			admitted++
		}
	}
	assert.Equal(t, 2, admitted)

	// A long idle period refills to capacity, not beyond
	now = now.Add(time.Hour)
	admitted = 0
	for i := 0; i < 10; i++ {
		if limiter.Check("c", now).Allowed {
			admitted++
		}
	}
	assert.Equal(t, 5, admitted)
}

func TestTokenBucket_BackwardClockJumpClampsToZero(t *testing.T) {
	limiter := NewTokenBucket(5, 1)
	now := time.Now()

	require.True(t, limiter.Check("c", now).Allowed)

	// Wall clock jumps backwards; the bucket must not drain or refill
	d := limiter.Check("c", now.Add(-time.Hour))
	require.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)
}

func TestTokenBucket_RejectionResetMs(t *testing.T) {
	limiter := NewTokenBucket(1, 0.5)
	now := time.Now()

	require.True(t, limiter.Check("c", now).Allowed)

	d := limiter.Check("c", now)
	require.False(t, d.Allowed)
	// One full token at 0.5 tokens/sec is 2000 ms away
	assert.Equal(t, int64(2000), d.ResetMs)
}
