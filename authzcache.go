package gantry

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache sizing and timing defaults.
const (
	DefaultCacheEntries = 10_000
	DefaultMaxEvalTime  = 500 * time.Millisecond
	DefaultNegativeTTL  = 5 * time.Second

	cacheShardCount = 16
)

// CacheConfig configures the AuthzCache.
type CacheConfig struct {
	// MaxEntries bounds the number of resolved decisions retained.
	MaxEntries int
	// MaxEvalTime is the per-call deadline handed to the evaluator.
	MaxEvalTime time.Duration
	// NegativeTTL is how long a deny synthesized from a permanent
	// evaluator error is retained.
	NegativeTTL time.Duration
}

func (c CacheConfig) withDefaults() CacheConfig {
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultCacheEntries
	}
	if c.MaxEvalTime <= 0 {
		c.MaxEvalTime = DefaultMaxEvalTime
	}
	if c.NegativeTTL <= 0 {
		c.NegativeTTL = DefaultNegativeTTL
	}
	return c
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
}

// AuthzCache memoizes policy decisions by fingerprint with a single-flight
// guarantee: for any fingerprint, at most one evaluator call is in flight,
// and concurrent callers share its outcome. Resolved decisions are retained
// until their TTL deadline, bounded by an approximated (per-shard) LRU.
type AuthzCache struct {
	cfg       CacheConfig
	evaluator Evaluator
	flight    singleflight.Group
	shards    [cacheShardCount]cacheShard

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type cacheShard struct {
	mu      sync.Mutex
	entries map[Fingerprint]*cacheEntry
	// lru front is most recently used; element values are Fingerprints.
	lru list.List
}

type cacheEntry struct {
	decision Decision
	deadline time.Time
	elem     *list.Element
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.deadline)
}

// NewAuthzCache returns a cache fronting the given evaluator.
func NewAuthzCache(evaluator Evaluator, cfg CacheConfig) *AuthzCache {
	c := &AuthzCache{cfg: cfg.withDefaults(), evaluator: evaluator}
	for i := range c.shards {
		c.shards[i].entries = make(map[Fingerprint]*cacheEntry)
	}
	return c
}

func (c *AuthzCache) shard(fp Fingerprint) *cacheShard {
	var sum uint32
	for i := 0; i < len(fp); i++ {
		sum = sum*31 + uint32(fp[i])
	}
	return &c.shards[sum%cacheShardCount]
}

// Lookup returns the decision for fp, evaluating the policy on a miss.
// Concurrent lookups for the same fresh fingerprint coalesce onto a single
// evaluator call. A caller whose ctx is cancelled while awaiting stops
// waiting, but the in-flight evaluation continues and populates the cache
// for subsequent callers.
func (c *AuthzCache) Lookup(ctx context.Context, fp Fingerprint, input PolicyInput) (Decision, error) {
	if d, ok := c.get(fp); ok {
		c.hits.Add(1)
		return d, nil
	}
	c.misses.Add(1)

	// The evaluation deliberately does not inherit ctx: awaiter
	// cancellation must not abort the shared computation.
	ch := c.flight.DoChan(string(fp), func() (any, error) {
		return c.evaluate(fp, input)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Decision{}, res.Err
		}
		return res.Val.(Decision), nil
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

// evaluate runs the evaluator under its per-call deadline and stores the
// outcome per the TTL policy.
func (c *AuthzCache) evaluate(fp Fingerprint, input PolicyInput) (Decision, error) {
	evalCtx, cancel := context.WithTimeout(context.Background(), c.cfg.MaxEvalTime)
	defer cancel()

	d, err := c.evaluator.Evaluate(evalCtx, input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = RetryableEvalError(ErrEvaluationTimeout)
		}
		if classifyEvalError(err) == EvalPermanent {
			// Negative-cache a deny so a broken policy does not hammer
			// the evaluator.
			deny := Decision{
				Allowed:    false,
				Reason:     "policy evaluation failed",
				ComputedAt: time.Now(),
				TTL:        c.cfg.NegativeTTL,
			}
			c.put(fp, deny)
		}
		return Decision{}, err
	}

	if d.ComputedAt.IsZero() {
		d.ComputedAt = time.Now()
	}
	if d.TTL > 0 {
		c.put(fp, d)
	}
	return d, nil
}

// get returns a fresh resolved decision, lazily purging an expired entry.
func (c *AuthzCache) get(fp Fingerprint) (Decision, bool) {
	s := c.shard(fp)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fp]
	if !ok {
		return Decision{}, false
	}
	if e.expired(time.Now()) {
		s.remove(fp, e)
		return Decision{}, false
	}
	s.lru.MoveToFront(e.elem)
	return e.decision, true
}

func (c *AuthzCache) put(fp Fingerprint, d Decision) {
	s := c.shard(fp)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.entries[fp]; ok {
		e.decision = d
		e.deadline = now.Add(d.TTL)
		s.lru.MoveToFront(e.elem)
		return
	}

	// Opportunistically drop expired entries from the cold end before
	// resorting to LRU eviction.
	capPerShard := c.cfg.MaxEntries / cacheShardCount
	if capPerShard < 1 {
		capPerShard = 1
	}
	for len(s.entries) >= capPerShard {
		back := s.lru.Back()
		if back == nil {
			break
		}
		victim := back.Value.(Fingerprint)
		ve := s.entries[victim]
		s.remove(victim, ve)
		if !ve.expired(now) {
			c.evictions.Add(1)
		}
	}

	e := &cacheEntry{decision: d, deadline: now.Add(d.TTL)}
	e.elem = s.lru.PushFront(fp)
	s.entries[fp] = e
}

// remove must be called with the shard lock held.
func (s *cacheShard) remove(fp Fingerprint, e *cacheEntry) {
	s.lru.Remove(e.elem)
	delete(s.entries, fp)
}

// Invalidate removes any resolved or expired entry for fp. An in-flight
// evaluation is untouched: it resolves normally and its result is retained
// per the TTL policy.
func (c *AuthzCache) Invalidate(fp Fingerprint) {
	s := c.shard(fp)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[fp]; ok {
		s.remove(fp, e)
	}
}

// InvalidateAll clears every resolved and expired entry, leaving in-flight
// evaluations untouched.
func (c *AuthzCache) InvalidateAll() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.entries = make(map[Fingerprint]*cacheEntry)
		s.lru.Init()
		s.mu.Unlock()
	}
}

// Stats returns a snapshot of the cache counters.
func (c *AuthzCache) Stats() CacheStats {
	st := CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		st.Size += len(s.entries)
		s.mu.Unlock()
	}
	return st
}
