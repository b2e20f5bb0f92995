package chat

import (
	"sync"
	"time"
)

// RateLimit bounds how many messages one sender may submit to one room.
// A non-positive Burst disables limiting.
type RateLimit struct {
	Burst          int
	RefillInterval time.Duration
}

type rateLimiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
}

func newRateLimiter(capacity int, interval time.Duration, now time.Time) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	rate := float64(capacity) / interval.Seconds()
	if rate <= 0 {
		rate = float64(capacity)
	}

	return &rateLimiter{
		tokens:    float64(capacity),
		capacity:  float64(capacity),
		rate:      rate,
		lastCheck: now,
	}
}

func (rl *rateLimiter) refill(now time.Time) {
	elapsed := now.Sub(rl.lastCheck).Seconds()
	rl.lastCheck = now

	if elapsed > 0 {
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}
}

func (rl *rateLimiter) allow(now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(now)
	if rl.tokens < 1 {
		return false
	}

	rl.tokens--
	return true
}

// full reports whether the bucket has refilled completely, in which case it
// is indistinguishable from a fresh one.
func (rl *rateLimiter) full(now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(now)
	return rl.tokens >= rl.capacity
}

// maxIdleLimiters is the size above which full buckets are swept.
const maxIdleLimiters = 1024

// senderLimiters keeps one token bucket per room and sender.
type senderLimiters struct {
	cfg RateLimit

	mu       sync.Mutex
	limiters map[string]*rateLimiter
}

func newSenderLimiters(cfg RateLimit) *senderLimiters {
	return &senderLimiters{
		cfg:      cfg,
		limiters: make(map[string]*rateLimiter),
	}
}

func (s *senderLimiters) allow(roomID, sender string, now time.Time) bool {
	if s.cfg.Burst <= 0 {
		return true
	}

	key := roomID + "\x00" + sender

	s.mu.Lock()
	limiter, ok := s.limiters[key]
	if !ok {
		if len(s.limiters) >= maxIdleLimiters {
			s.sweepLocked(now)
		}
		limiter = newRateLimiter(s.cfg.Burst, s.cfg.RefillInterval, now)
		s.limiters[key] = limiter
	}
	s.mu.Unlock()

	return limiter.allow(now)
}

func (s *senderLimiters) forget(roomID, sender string) {
	s.mu.Lock()
	delete(s.limiters, roomID+"\x00"+sender)
	s.mu.Unlock()
}

func (s *senderLimiters) sweepLocked(now time.Time) {
	for key, limiter := range s.limiters {
		if limiter.full(now) {
			delete(s.limiters, key)
		}
	}
}

func (s *senderLimiters) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
