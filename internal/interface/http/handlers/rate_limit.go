package handlers

import (
	"net/http"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// Token bucket per authenticated user. Защищает квизы от перебора ответов.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the refill rate of each user's bucket.
	RequestsPerMinute int

	// BurstSize is the bucket capacity.
	BurstSize int

	// BanThreshold violations within BanWindow block the user for BanDuration.
	// 0 disables bans.
	BanThreshold int
	BanWindow    time.Duration
	BanDuration  time.Duration

	// IdleTTL drops buckets untouched for this long.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns defaults sized for quiz submissions.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 12,
		BurstSize:         5,
		BanThreshold:      10,
		BanWindow:         5 * time.Minute,
		BanDuration:       10 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

// RateLimitResult represents the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Banned     bool
	Remaining  int
}

// RateLimiter implements per-user rate limiting using the token bucket algorithm.
type RateLimiter struct {
	config RateLimitConfig
	now    func() time.Time

	mu          sync.Mutex
	buckets     map[string]*tokenBucket
	lastCleanup time.Time
}

type tokenBucket struct {
	tokens       float64
	lastRefill   time.Time
	violations   int
	lastViolated time.Time
	bannedUntil  time.Time
}

// NewRateLimiter creates a rate limiter. A zero rate disables limiting.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*tokenBucket),
	}
}

// WithClock replaces the time source.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.now = now
	return rl
}

// Check consumes one token for key.
func (rl *RateLimiter) Check(key string) RateLimitResult {
	if rl.config.RequestsPerMinute <= 0 {
		return RateLimitResult{Allowed: true, Remaining: rl.config.BurstSize}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanupLocked(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: float64(rl.config.BurstSize), lastRefill: now}
		rl.buckets[key] = b
	}

	if now.Before(b.bannedUntil) {
		return RateLimitResult{RetryAfter: b.bannedUntil.Sub(now), Banned: true}
	}

	rate := float64(rl.config.RequestsPerMinute) / 60.0
	b.tokens += now.Sub(b.lastRefill).Seconds() * rate
	if max := float64(rl.config.BurstSize); b.tokens > max {
		b.tokens = max
	}
	b.lastRefill = now

	if b.tokens >= 1.0 {
		b.tokens--
		return RateLimitResult{Allowed: true, Remaining: int(b.tokens)}
	}

	if now.Sub(b.lastViolated) > rl.config.BanWindow {
		b.violations = 0
	}
	b.violations++
	b.lastViolated = now
	if rl.config.BanThreshold > 0 && b.violations >= rl.config.BanThreshold {
		b.bannedUntil = now.Add(rl.config.BanDuration)
		b.violations = 0
		return RateLimitResult{RetryAfter: rl.config.BanDuration, Banned: true}
	}

	deficit := 1.0 - b.tokens
	retry := time.Duration(deficit / rate * float64(time.Second))
	return RateLimitResult{RetryAfter: retry}
}

// Reset forgets key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	delete(rl.buckets, key)
	rl.mu.Unlock()
}

// cleanupLocked drops idle buckets at most once per IdleTTL.
func (rl *RateLimiter) cleanupLocked(now time.Time) {
	if now.Sub(rl.lastCleanup) < rl.config.IdleTTL {
		return
	}
	rl.lastCleanup = now
	for k, b := range rl.buckets {
		if now.Sub(b.lastRefill) > rl.config.IdleTTL && !now.Before(b.bannedUntil) {
			delete(rl.buckets, k)
		}
	}
}

// Middleware limits requests per authenticated principal. It must run after
// the auth middleware; anonymous requests pass through.
func (rl *RateLimiter) Middleware(onLimited func(http.ResponseWriter, *http.Request, RateLimitResult)) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok || p.Role.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			if res := rl.Check(p.ID.String()); !res.Allowed {
				onLimited(w, r, res)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
