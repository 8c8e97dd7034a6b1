package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow keeps an ordered log of request timestamps per client,
// bounded by the request limit. Memory is O(limit) per client.
type SlidingWindow struct {
	mu       sync.Mutex
	requests map[string][]int64 // unix millis, oldest first
	limit    int
	windowMs int64
}

func NewSlidingWindow(limit int, windowMs int64) *SlidingWindow {
	return &SlidingWindow{
		requests: make(map[string][]int64),
		limit:    limit,
		windowMs: windowMs,
	}
}

func (s *SlidingWindow) Check(key string, now time.Time) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()
	cutoff := nowMs - s.windowMs

	// Drop timestamps that have slid out of the window
	valid := s.requests[key][:0]
	for _, ts := range s.requests[key] {
		if ts > cutoff {
			valid = append(valid, ts)
		}
	}

	count := len(valid)

	if count < s.limit {
		valid = append(valid, nowMs)
		s.requests[key] = valid

		return Decision{
			Allowed:   true,
			Remaining: s.limit - count,
			ResetMs:   s.windowMs - (nowMs - valid[0]),
			Limit:     s.limit,
		}
	}

	s.requests[key] = valid

	return Decision{
		Allowed:   false,
		Remaining: 0,
		ResetMs:   s.windowMs - (nowMs - valid[0]),
		Limit:     s.limit,
	}
}

func (s *SlidingWindow) Limit() int {
	return s.limit
}
