package ratelimit

import (
	"math"
	"sync"
	"time"
)

type TokenBucket struct {
	mu         sync.Mutex
	buckets    map[string]*bucketState
	capacity   int
	refillRate float64 // tokens per second
}

type bucketState struct {
	tokens     float64
	lastRefill time.Time
}

func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		buckets:    make(map[string]*bucketState),
		capacity:   capacity,
		refillRate: refillRate,
	}
}

func (t *TokenBucket) Check(key string, now time.Time) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.buckets[key]
	if !ok {
		// First-seen clients start with a full bucket
		state = &bucketState{
			tokens:     float64(t.capacity),
			lastRefill: now,
		}
		t.buckets[key] = state
	}

	// Refill based on time elapsed; a backward clock jump refills nothing
	elapsed := now.Sub(state.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	state.tokens = math.Min(state.tokens+elapsed*t.refillRate, float64(t.capacity))
	state.lastRefill = now

	if state.tokens >= 1 {
		state.tokens -= 1

		var resetMs int64
		if state.tokens <= 0 {
			resetMs = int64(math.Ceil(1 / t.refillRate * 1000))
		}

		return Decision{
			Allowed:   true,
			Remaining: int(math.Floor(state.tokens)),
			ResetMs:   resetMs,
			Limit:     t.capacity,
		}
	}

	return Decision{
		Allowed:   false,
		Remaining: 0,
		ResetMs:   int64(math.Ceil((1 - state.tokens) / t.refillRate * 1000)),
		Limit:     t.capacity,
	}
}

func (t *TokenBucket) Limit() int {
	return t.capacity
}
