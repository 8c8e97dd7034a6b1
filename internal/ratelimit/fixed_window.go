package ratelimit

import (
	"sync"
	"time"
)

// FixedWindow counts requests inside aligned windows starting at the first
// request. Bursts of up to 2x the limit across a window edge are accepted;
// the global ceiling relies on this algorithm for its cheapness.
type FixedWindow struct {
	mu       sync.Mutex
	windows  map[string]*windowState
	limit    int
	windowMs int64
}

type windowState struct {
	count       int
	windowStart int64 // unix millis
}

func NewFixedWindow(limit int, windowMs int64) *FixedWindow {
	return &FixedWindow{
		windows:  make(map[string]*windowState),
		limit:    limit,
		windowMs: windowMs,
	}
}

func (f *FixedWindow) Check(key string, now time.Time) Decision {
	f.mu.Lock()
	defer f.mu.Unlock()

	nowMs := now.UnixMilli()

	state, ok := f.windows[key]
	if !ok || nowMs-state.windowStart >= f.windowMs {
		state = &windowState{count: 0, windowStart: nowMs}
		f.windows[key] = state
	}

	resetMs := f.windowMs - (nowMs - state.windowStart)

	if state.count < f.limit {
		state.count++

		return Decision{
			Allowed:   true,
			Remaining: f.limit - state.count,
			ResetMs:   resetMs,
			Limit:     f.limit,
		}
	}

	return Decision{
		Allowed:   false,
		Remaining: 0,
		ResetMs:   resetMs,
		Limit:     f.limit,
	}
}

func (f *FixedWindow) Limit() int {
	return f.limit
}
