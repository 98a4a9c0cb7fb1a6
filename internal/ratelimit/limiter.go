// Package ratelimit implements the per-identity request budgets shared by the
// HTTP handlers.
//
// The algorithm is a fixed window that restarts after a quiet period: an
// identity's counter resets once its last allowed call is a full window in the
// past. Around a window boundary a client can therefore get up to twice the
// limit through in quick succession. That is the established behavior and is
// kept as is.
package ratelimit

import (
	"sync"
	"time"
)

type entry struct {
	count int
	last  time.Time
}

// Limiter counts calls per identity. Each Limiter is an independent keyspace.
type Limiter struct {
	name   string
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New returns a limiter allowing limit calls per window per identity.
func New(name string, limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{
		name:    name,
		limit:   limit,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a call for identity and reports whether it fits the budget.
// A denied call does not touch the entry.
func (l *Limiter) Allow(identity string) bool {
	now := l.now()
	windowStart := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identity]
	if !ok || !e.last.After(windowStart) {
		l.entries[identity] = &entry{count: 1, last: now}
		return true
	}
	if e.count >= l.limit {
		return false
	}
	e.count++
	e.last = now
	return true
}

// Sweep drops identities whose window has lapsed and returns how many went.
// Dropped identities behave exactly as if they had been reset by Allow.
func (l *Limiter) Sweep() int {
	windowStart := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	var removed int
	for id, e := range l.entries {
		if !e.last.After(windowStart) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Reset forgets every identity.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*entry)
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) Name() string          { return l.name }
func (l *Limiter) Limit() int            { return l.limit }
func (l *Limiter) Window() time.Duration { return l.window }
