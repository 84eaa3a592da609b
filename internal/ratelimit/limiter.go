// Package ratelimit implements fixed-window rate limiting for outbound
// provider calls.
//
// A [Limiter] is constructed with one or more windows because providers
// publish both burst (per-second) and sustained (per-minute) ceilings; a
// consumption must pass every window to succeed, and fails fast with the
// exact wait time of the first window it would exceed.
//
// Window counters live in a [Store]. The in-memory store covers a single
// process; the redis store shares the budget across processes holding the
// same credential.
package ratelimit

import (
	"context"
	"time"

	"github.com/arcspire/mediasync/internal/shared"
)

// Window is a (points, duration) budget a caller must not exceed. KeyPrefix
// namespaces the window's counters so limiters sharing a store never collide.
type Window struct {
	Points    int
	Duration  time.Duration
	KeyPrefix string
}

// Store tracks per-key consumption counts for fixed windows.
//
// Incr atomically increments the counter for key, starting a fresh window of
// the given duration when none is active, and returns the new count together
// with the time remaining until the window resets.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Limiter guards one outbound credential against one or more windows.
type Limiter struct {
	windows []Window
	store   Store
}

// New creates a Limiter over the given windows backed by store. A nil store
// defaults to an in-memory one.
func New(store Store, windows ...Window) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{windows: windows, store: store}
}

// Consume spends one point from every window for the given key.
//
// On success all windows have been decremented. On failure it returns a
// [shared.RateLimitError] carrying the retry-after of the violated window;
// windows checked before the violation keep their consumption, which matches
// the behaviour of a shared external store and errs on the conservative side.
func (l *Limiter) Consume(ctx context.Context, key string) error {
	for _, w := range l.windows {
		count, ttl, err := l.store.Incr(ctx, w.KeyPrefix+":"+key, w.Duration)
		if err != nil {
			return err
		}
		if count > int64(w.Points) {
			return &shared.RateLimitError{Key: key, RetryAfter: ttl}
		}
	}
	return nil
}
