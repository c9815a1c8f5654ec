package usagegate

import (
	"context"
	"time"
)

// Counter names a durable usage counter. The set is closed; stores map each
// name to a column through a whitelist.
type Counter string

const (
	CounterReadings Counter = "readings"
	CounterTTS      Counter = "tts"
	CounterAPICalls Counter = "api_calls"
)

// UsageRow is the durable counter row for one (principal, UTC month).
// At most one row exists per key; counters start at zero and move only by
// ±1 through Increment/Decrement. Rows are created lazily on first
// increment and retained for historical usage display.
type UsageRow struct {
	PrincipalID string
	Month       string
	Readings    int64
	TTS         int64
	APICalls    int64
	CreatedAt   int64 // epoch seconds
	UpdatedAt   int64 // epoch seconds
}

// Count returns the value of the named counter.
func (r UsageRow) Count(c Counter) int64 {
	switch c {
	case CounterReadings:
		return r.Readings
	case CounterTTS:
		return r.TTS
	case CounterAPICalls:
		return r.APICalls
	default:
		return 0
	}
}

// IncrementArgs parameterizes a conditional counter increment.
type IncrementArgs struct {
	PrincipalID string
	Month       string
	Counter     Counter

	// Limit is the ceiling; Unlimited disables the guard.
	Limit int64

	// NowMs stamps created_at/updated_at (epoch milliseconds).
	NowMs int64
}

// CounterStore is a durable per-principal-per-month counter table.
//
// Increment must be race-free under concurrent callers for the same key:
// a single conditional write at the storage layer, so that of N concurrent
// callers at count == limit-1 exactly one succeeds. Every ceiling
// guarantee in this package rests on that one primitive.
//
// Implementations signal a missing schema (pending migration) by wrapping
// ErrStoreUnavailable; callers treat that as "tracking unavailable, allow".
type CounterStore interface {
	// Usage returns the row for (principalID, month), or nil if none exists.
	Usage(ctx context.Context, principalID, month string) (*UsageRow, error)

	// Increment adds 1 to the named counter iff no ceiling applies or the
	// current value is below it, creating the row if needed. Returns
	// whether a mutation occurred.
	Increment(ctx context.Context, args IncrementArgs) (bool, error)

	// Decrement subtracts 1 from the named counter, clamped at zero.
	// Rollback only; errors are reported but never fail a caller's flow.
	Decrement(ctx context.Context, principalID, month string, counter Counter, nowMs int64) error
}

// EphemeralStore is a distributed key/value cache with per-key TTL, used as
// the fallback counter for principals without a durable identity and for
// short-window rate limiting. No atomic increment is assumed; counter logic
// built on Get/Put uses read-increment-write-verify and accepts a bounded
// race window at the limit boundary.
type EphemeralStore interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put writes value with the given TTL.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
}

// AtomicIncrer is optionally implemented by EphemeralStore backends with a
// native atomic increment. When available the gate prefers it and drops the
// verification read entirely.
type AtomicIncrer interface {
	// Incr atomically increments key, setting ttl on first write, and
	// returns the new value.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Decr atomically decrements key, clamped at zero, and returns the
	// new value.
	Decr(ctx context.Context, key string) (int64, error)
}
