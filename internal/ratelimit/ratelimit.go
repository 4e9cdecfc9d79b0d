// Package ratelimit implements a fixed-window request limiter. Counter
// storage sits behind a small interface so deployments can swap the default
// in-process store for a shared one without touching the limiting logic.
package ratelimit

import (
	"sync"
	"time"
)

// Store holds per-key window counters. Windows open at the key's first
// request, not on clock boundaries. Increment must atomically bump and
// return the key's count along with the start of the window it counted in,
// opening a fresh window at now when the previous one has elapsed.
type Store interface {
	Increment(key string, now time.Time, window time.Duration) (count int, windowStart time.Time)
	// Sweep drops counters for windows that started at or before cutoff.
	Sweep(cutoff time.Time)
}

// Result reports one limiter decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (l *Limiter) SetNow(now func() time.Time) {
	l.now = now
}

// Check counts one request against the key's current window. The counter is
// consumed even when the request is denied.
func (l *Limiter) Check(key string) Result {
	count, windowStart := l.store.Increment(key, l.now(), l.window)

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= l.limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(l.window),
	}
}

// Cleanup drops counters for windows that have already closed. Run it
// periodically so idle keys do not accumulate.
func (l *Limiter) Cleanup() {
	l.store.Sweep(l.now().Add(-l.window))
}

type windowCounter struct {
	start time.Time
	count int
}

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]windowCounter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]windowCounter)}
}

func (s *MemoryStore) Increment(key string, now time.Time, window time.Duration) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !now.Before(c.start.Add(window)) {
		c = windowCounter{start: now}
	}
	c.count++
	s.counters[key] = c
	return c.count, c.start
}

func (s *MemoryStore) Sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, c := range s.counters {
		if !c.start.After(cutoff) {
			delete(s.counters, key)
		}
	}
}
