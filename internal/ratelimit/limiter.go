// Package ratelimit implements fixed-window request limiting over a counter
// store shared by every server process. The counting policy is a pure
// function of (window, ceiling); the storage backend is injected, so tests
// run the same policy against an in-memory map that production runs against
// redis.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"
)

// CounterStore provides atomic increment-and-read semantics for window
// counters. Implementations must not undercount under concurrent bursts.
type CounterStore interface {
	// Increment bumps the counter for key and returns the new value. ttl
	// bounds the counter's lifetime; keys embed the window start so stale
	// counters are never reused.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Decrement refunds one previously counted event.
	Decrement(ctx context.Context, key string) error
}

// Policy describes one limiting regime.
type Policy struct {
	// Name namespaces counter keys and log lines.
	Name string
	// Limit is the ceiling per window.
	Limit int
	// Window is the fixed window length.
	Window time.Duration
	// CountSuccess, when false, refunds events whose request ultimately
	// succeeded, so only failures accumulate (credential throttling).
	CountSuccess bool
	// ExemptPaths bypass the policy entirely.
	ExemptPaths []string
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// key is retained so a later refund hits the same counter.
	key string
}

// RetryAfter returns the time until the window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	return d.ResetAt.Sub(now)
}

// Limiter applies one Policy against a shared store, degrading to a local
// best-effort counter when the store is unreachable. Degraded mode weakens
// the cross-process guarantee and is therefore logged and exported as a
// metric; counts are not reconciled after recovery.
type Limiter struct {
	policy   Policy
	store    CounterStore
	fallback CounterStore
	logger   *slog.Logger
	degraded atomic.Bool
	now      func() time.Time

	// onDegraded, when set, receives transitions into and out of
	// degraded mode for the observability gauge.
	onDegraded func(active bool)
}

// NewLimiter constructs a Limiter. fallback may be nil, in which case a
// fresh in-process store is used.
func NewLimiter(policy Policy, store CounterStore, fallback CounterStore, logger *slog.Logger) *Limiter {
	if fallback == nil {
		fallback = NewMemoryStore()
	}
	return &Limiter{
		policy:   policy,
		store:    store,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// OnDegraded registers the degraded-mode observer.
func (l *Limiter) OnDegraded(fn func(active bool)) { l.onDegraded = fn }

// Policy returns the configured policy.
func (l *Limiter) Policy() Policy { return l.policy }

// Admit records one event under scopeKey and decides whether it fits in the
// current window.
func (l *Limiter) Admit(ctx context.Context, scopeKey string) Decision {
	now := l.now()
	windowStart := now.Truncate(l.policy.Window)
	key := "ratelimit:" + l.policy.Name + ":" + scopeKey + ":" + strconv.FormatInt(windowStart.Unix(), 10)
	resetAt := windowStart.Add(l.policy.Window)

	count, err := l.store.Increment(ctx, key, l.policy.Window+time.Second)
	if err != nil {
		l.enterDegraded(err)
		count, err = l.fallback.Increment(ctx, key, l.policy.Window+time.Second)
		if err != nil {
			// Both stores failing is fail-closed: deny rather than
			// silently lifting the ceiling.
			return Decision{Allowed: false, Limit: l.policy.Limit, Remaining: 0, ResetAt: resetAt, key: key}
		}
	} else {
		l.exitDegraded()
	}

	remaining := l.policy.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(l.policy.Limit),
		Limit:     l.policy.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
		key:       key,
	}
}

// Refund un-counts a previously admitted event, used when the policy only
// counts failures and the request succeeded.
func (l *Limiter) Refund(ctx context.Context, d Decision) {
	if d.key == "" {
		return
	}
	store := l.store
	if l.degraded.Load() {
		store = l.fallback
	}
	if err := store.Decrement(ctx, d.key); err != nil && l.logger != nil {
		l.logger.Warn("rate limit refund failed",
			slog.String("policy", l.policy.Name),
			slog.Any("error", err))
	}
}

func (l *Limiter) enterDegraded(cause error) {
	if l.degraded.CompareAndSwap(false, true) {
		if l.logger != nil {
			l.logger.Error("rate limit store unreachable, degrading to local counters",
				slog.String("policy", l.policy.Name),
				slog.Any("error", cause))
		}
		if l.onDegraded != nil {
			l.onDegraded(true)
		}
	}
}

func (l *Limiter) exitDegraded() {
	if l.degraded.CompareAndSwap(true, false) {
		if l.logger != nil {
			l.logger.Info("rate limit store recovered",
				slog.String("policy", l.policy.Name))
		}
		if l.onDegraded != nil {
			l.onDegraded(false)
		}
	}
}
