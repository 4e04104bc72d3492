// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

// Package cache memoizes store results with TTL expiry, single-flight
// execution and an optional LRU capacity bound.
//
// A QueryCache never stores failures: an executor error is returned to every
// caller sharing the flight and the next lookup executes again. Values are
// shared between callers and must be treated as read-only.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/boston311/internal/logging"
	"github.com/tomtom215/boston311/internal/metrics"
)

// Defaults applied by New.
const (
	DefaultTTL = 5 * time.Minute
)

// Eviction reasons reported to metrics.
const (
	reasonExpired     = "expired"
	reasonCapacity    = "capacity"
	reasonInvalidated = "invalidated"
)

// Options configures a QueryCache.
type Options struct {
	// Name labels metrics and logs, e.g. "records".
	Name string

	// TTL is the entry lifetime. Zero uses DefaultTTL.
	TTL time.Duration

	// MaxEntries bounds the cache with LRU eviction. Zero means unbounded.
	MaxEntries int

	// SweepInterval runs a background purge of expired entries.
	// Zero uses TTL; negative disables the sweeper.
	SweepInterval time.Duration

	// Now is the clock. Nil uses time.Now.
	Now func() time.Time
}

// Executor produces the value for a key on a miss.
type Executor[V any] func(ctx context.Context) (V, error)

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Shared    int64
	Evictions int64
	Entries   int
}

// HitRate returns hits as a percentage of all lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses + s.Shared
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// QueryCache is safe for concurrent use.
type QueryCache[V any] struct {
	name       string
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*entry[V]
	recency *recencyList[V]
	// gen advances on Invalidate and Clear so in-flight results started
	// before the invalidation are not written back.
	gen uint64

	group singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	shared    atomic.Int64
	evictions atomic.Int64

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a QueryCache and starts its sweeper unless disabled.
func New[V any](opts Options) *QueryCache[V] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = "default"
	}

	c := &QueryCache[V]{
		name:       opts.Name,
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		entries:    make(map[string]*entry[V]),
		recency:    newRecencyList[V](),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	interval := opts.SweepInterval
	if interval == 0 {
		interval = opts.TTL
	}
	if interval > 0 {
		go c.sweepLoop(interval)
	} else {
		close(c.done)
	}
	return c
}

// GetOrExecute returns the fresh cached value for key, or runs exec once for
// all concurrent callers of the same key and caches a successful result.
//
// exec runs with a context detached from ctx's cancellation so a caller that
// gives up does not fail the others; exec must apply its own deadline. A
// caller whose ctx ends first returns ctx.Err() while the flight continues.
func (c *QueryCache[V]) GetOrExecute(ctx context.Context, key string, exec Executor[V]) (V, error) {
	if v, ok := c.lookup(key); ok {
		c.hits.Add(1)
		metrics.QueryCacheHits.WithLabelValues(c.name).Inc()
		return v, nil
	}

	led := false
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		led = true
		// Another flight may have filled the entry between lookup and DoChan.
		if v, ok := c.lookup(key); ok {
			c.hits.Add(1)
			metrics.QueryCacheHits.WithLabelValues(c.name).Inc()
			return v, nil
		}

		c.mu.Lock()
		gen := c.gen
		c.mu.Unlock()

		c.misses.Add(1)
		metrics.QueryCacheMisses.WithLabelValues(c.name).Inc()

		v, err := c.run(flightCtx, exec)
		if err != nil {
			logging.Ctx(flightCtx).Debug().Err(err).Str("cache", c.name).Msg("cache executor failed, not cached")
			return v, err
		}
		c.store(key, v, gen)
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if !led {
			c.shared.Add(1)
			metrics.QueryCacheShared.WithLabelValues(c.name).Inc()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(V)
		if !ok {
			return zero, fmt.Errorf("cache %s: unexpected value type %T", c.name, res.Val)
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// run converts an executor panic into an error; singleflight would otherwise
// re-panic on a goroutine nobody can recover.
func (c *QueryCache[V]) run(ctx context.Context, exec Executor[V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cache %s: executor panic: %v", c.name, r)
		}
	}()
	return exec(ctx)
}

// Get returns a fresh cached value without executing anything.
func (c *QueryCache[V]) Get(key string) (V, bool) {
	v, ok := c.lookup(key)
	if ok {
		c.hits.Add(1)
		metrics.QueryCacheHits.WithLabelValues(c.name).Inc()
	}
	return v, ok
}

func (c *QueryCache[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e, c.now()) {
		c.removeLocked(e, reasonExpired)
		var zero V
		return zero, false
	}
	c.recency.moveToFront(e)
	return e.value, true
}

func (c *QueryCache[V]) store(key string, v V, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	if old, ok := c.entries[key]; ok {
		c.recency.remove(old)
		delete(c.entries, key)
	}

	e := &entry[V]{key: key, value: v, createdAt: c.now()}
	c.entries[key] = e
	c.recency.pushFront(e)

	for c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.removeLocked(c.recency.back(), reasonCapacity)
	}
	metrics.QueryCacheEntries.WithLabelValues(c.name).Set(float64(len(c.entries)))
}

// expired reports whether e is at or past its TTL. Fresh means now-created < ttl.
func (c *QueryCache[V]) expired(e *entry[V], now time.Time) bool {
	return now.Sub(e.createdAt) >= c.ttl
}

// removeLocked must be called with mu held.
func (c *QueryCache[V]) removeLocked(e *entry[V], reason string) {
	c.recency.remove(e)
	delete(c.entries, e.key)
	c.evictions.Add(1)
	metrics.QueryCacheEvictions.WithLabelValues(c.name, reason).Inc()
	metrics.QueryCacheEntries.WithLabelValues(c.name).Set(float64(len(c.entries)))
}

// Invalidate drops key and detaches any flight in progress for it, so the
// next lookup executes afresh.
func (c *QueryCache[V]) Invalidate(key string) {
	c.mu.Lock()
	c.gen++
	if e, ok := c.entries[key]; ok {
		c.removeLocked(e, reasonInvalidated)
	}
	c.mu.Unlock()
	c.group.Forget(key)
}

// Clear drops every entry.
func (c *QueryCache[V]) Clear() {
	c.mu.Lock()
	c.gen++
	n := len(c.entries)
	c.entries = make(map[string]*entry[V])
	c.recency.reset()
	c.mu.Unlock()

	c.evictions.Add(int64(n))
	metrics.QueryCacheEvictions.WithLabelValues(c.name, reasonInvalidated).Add(float64(n))
	metrics.QueryCacheEntries.WithLabelValues(c.name).Set(0)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *QueryCache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for e := c.recency.back(); e != nil && e != c.recency.head; {
		prev := e.prev
		if c.expired(e, now) {
			c.removeLocked(e, reasonExpired)
			removed++
		}
		e = prev
	}
	return removed
}

func (c *QueryCache[V]) sweepLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				logging.Debug().Str("cache", c.name).Int("removed", n).Msg("swept expired cache entries")
			}
		case <-c.stop:
			return
		}
	}
}

// Close stops the sweeper. Lookups keep working after Close.
func (c *QueryCache[V]) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *QueryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *QueryCache[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Shared:    c.shared.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.Len(),
	}
}
