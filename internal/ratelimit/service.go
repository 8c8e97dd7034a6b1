package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

const globalKey = "__global__"

// Service dispatches admission checks: the global fixed-window ceiling runs
// first, then the client's tier algorithm. Per-client state is segregated by
// tier, so two tiers sharing an algorithm never share counters.
type Service struct {
	cfg    Config
	global *FixedWindow

	mu       sync.Mutex
	limiters map[string]Limiter // tier name -> limiter, built lazily

	hits atomic.Int64

	now func() time.Time
}

func NewService(cfg Config) *Service {
	s := &Service{
		cfg:      cfg,
		limiters: make(map[string]Limiter),
		now:      time.Now,
	}

	if cfg.GlobalLimit.MaxRequests > 0 && cfg.GlobalLimit.WindowMs > 0 {
		s.global = NewFixedWindow(cfg.GlobalLimit.MaxRequests, cfg.GlobalLimit.WindowMs)
	}

	return s
}

// Check admits or rejects one request from ip under the named tier.
func (s *Service) Check(ip, tierName string) Decision {
	now := s.now()

	if s.global != nil {
		if d := s.global.Check(globalKey, now); !d.Allowed {
			s.hits.Add(1)
			return d
		}
	}

	name, tier, ok := s.resolveTier(tierName)
	if !ok || tier.Algorithm == AlgorithmNone {
		return Unlimited()
	}

	limiter := s.limiterFor(name, tier)
	if limiter == nil {
		return Unlimited()
	}

	d := limiter.Check(ip, now)
	if !d.Allowed {
		s.hits.Add(1)
	}

	return d
}

// HitCount returns the number of rejected checks since startup.
func (s *Service) HitCount() int64 {
	return s.hits.Load()
}

func (s *Service) ResetHits() {
	s.hits.Store(0)
}

func (s *Service) resolveTier(tierName string) (string, TierConfig, bool) {
	if tier, ok := s.cfg.Tiers[tierName]; ok {
		return tierName, tier, true
	}
	if tier, ok := s.cfg.Tiers[s.cfg.DefaultTier]; ok {
		return s.cfg.DefaultTier, tier, true
	}
	return "", TierConfig{}, false
}

func (s *Service) limiterFor(name string, tier TierConfig) Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limiter, ok := s.limiters[name]; ok {
		return limiter
	}

	limiter := NewLimiter(tier)
	s.limiters[name] = limiter
	return limiter
}
