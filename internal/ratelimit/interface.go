package ratelimit

import (
	"time"
)

const (
	AlgorithmTokenBucket   = "tokenBucket"
	AlgorithmSlidingWindow = "slidingWindow"
	AlgorithmFixedWindow   = "fixedWindow"
	AlgorithmNone          = "none"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed   bool  `json:"allowed"`
	Remaining int   `json:"remaining"`
	ResetMs   int64 `json:"reset_ms"`
	Limit     int   `json:"limit"`
}

// Unlimited is the sentinel decision for tiers without limiting.
func Unlimited() Decision {
	return Decision{Allowed: true, Remaining: -1, ResetMs: 0, Limit: -1}
}

type Limiter interface {
	// Check consumes one unit of budget for key at the given instant.
	Check(key string, now time.Time) Decision

	Limit() int
}
