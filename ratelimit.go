package gantry

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitKey selects what a token bucket is keyed by.
type RateLimitKey string

const (
	// RateLimitByIdentity buckets by the resolved caller identity, falling
	// back to the source address for anonymous callers.
	RateLimitByIdentity RateLimitKey = "identity"
	// RateLimitByAddr buckets by the request's source address.
	RateLimitByAddr RateLimitKey = "addr"
	// RateLimitByHeader buckets by a request header named in KeyHeader.
	RateLimitByHeader RateLimitKey = "header"
)

// RateLimitConfig configures the optional rate-limit stage.
type RateLimitConfig struct {
	// Rate is the sustained request rate per key, per second.
	Rate float64
	// Burst is the bucket size per key.
	Burst int
	// Key selects the bucket extractor; default RateLimitByIdentity.
	Key RateLimitKey
	// KeyHeader names the header used with RateLimitByHeader.
	KeyHeader string
	// CleanupInterval is how often idle buckets are pruned (default 1m).
	CleanupInterval time.Duration
	// MaxIdle removes buckets idle longer than this (default 5m).
	MaxIdle time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	cfg RateLimitConfig

	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.Key == "" {
		cfg.Key = RateLimitByIdentity
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5 * time.Minute
	}
	return &rateLimiter{
		cfg:      cfg,
		limiters: make(map[string]*limiterEntry),
	}
}

func (rl *rateLimiter) key(rc *RequestContext, req *Request) string {
	switch rl.cfg.Key {
	case RateLimitByHeader:
		return req.HeaderValue(rl.cfg.KeyHeader)
	case RateLimitByAddr:
		return remoteHost(req.RemoteAddr)
	default:
		if !rc.Identity.IsAnonymous() {
			return rc.Identity.Key()
		}
		return remoteHost(req.RemoteAddr)
	}
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// stage applies per-key token-bucket limiting. Exhaustion short-circuits
// with 429 and a Retry-After hint. Runs after authorization so denied
// requests still consume rate budget.
func (rl *rateLimiter) stage(_ context.Context, rc *RequestContext, req *Request) StageOutcome {
	key := rl.cfg.Key.String() + ":" + rl.key(rc, req)

	rl.mu.Lock()
	now := time.Now()

	// Lazy cleanup of idle buckets.
	if now.Sub(rl.lastCleanup) >= rl.cfg.CleanupInterval {
		for k, e := range rl.limiters {
			if now.Sub(e.lastSeen) > rl.cfg.MaxIdle {
				delete(rl.limiters, k)
			}
		}
		rl.lastCleanup = now
	}

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.cfg.Rate), rl.cfg.Burst),
		}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	rl.mu.Unlock()

	if entry.limiter.Allow() {
		return Continue()
	}

	retryAfter := "1"
	if rl.cfg.Rate > 0 && rl.cfg.Rate < 1 {
		retryAfter = strconv.FormatFloat(1/rl.cfg.Rate, 'f', 0, 64)
	}

	resp := errorEnvelopeResponse(rc, NewError(CodeRateLimited, "rate limit exceeded"), false)
	resp.SetHeader("Retry-After", retryAfter)
	return ShortCircuit(resp)
}

func (k RateLimitKey) String() string { return string(k) }
