package usagegate

import (
	"context"
	"strconv"
	"time"
)

// ephemeralAttempts bounds retries against a misbehaving cache before the
// check fails open.
const ephemeralAttempts = 3

type bumpResult struct {
	allowed  bool
	count    int64 // best-known counter value after the check
	degraded bool  // cache unusable, caller must fail open
}

// bumpEphemeral counts one request against key with the given ceiling.
//
// Backends exposing a native atomic increment take the fast path with no
// verification. Otherwise the read-increment-write-verify pattern applies:
// read, reject at the ceiling, write+1 with TTL, then re-read to detect a
// concurrent writer. If the verification read shows the ceiling was crossed
// after our write landed, the request is rejected post hoc and the charge
// compensated with one best-effort decrement.
func (g *Gate) bumpEphemeral(ctx context.Context, feature Feature, key string, limit int64, ttl time.Duration) bumpResult {
	if inc, ok := g.cache.(AtomicIncrer); ok {
		n, err := inc.Incr(ctx, key, ttl)
		if err != nil {
			g.cacheError("incr", err)
			return bumpResult{allowed: true, degraded: true}
		}
		if limit != Unlimited && n > limit {
			return bumpResult{count: n}
		}
		return bumpResult{allowed: true, count: n}
	}

	var lastErr error
	for attempt := 0; attempt < ephemeralAttempts; attempt++ {
		current, found, err := g.cache.Get(ctx, key)
		if err != nil {
			lastErr = err
			continue
		}
		var c int64
		if found {
			c, _ = strconv.ParseInt(current, 10, 64)
		}
		if limit != Unlimited && c >= limit {
			return bumpResult{count: c}
		}

		next := c + 1
		if err := g.cache.Put(ctx, key, strconv.FormatInt(next, 10), ttl); err != nil {
			lastErr = err
			continue
		}

		after, found, err := g.cache.Get(ctx, key)
		if err != nil || !found {
			// Cannot verify; trust our own write.
			return bumpResult{allowed: true, count: next}
		}
		n, _ := strconv.ParseInt(after, 10, 64)
		if n < next {
			n = next
		}
		if limit != Unlimited && n > limit {
			// A concurrent writer crossed the ceiling after our write
			// landed. Reject post hoc and give the slot back.
			g.meter.OnStoreError(StoreErrorEvent{Store: "ephemeral", Op: "verify", Err: ErrRaceDetected})
			if err := g.decrEphemeral(ctx, key, ttl); err != nil {
				g.meter.OnRelease(ReleaseEvent{Feature: feature, Kind: ReservationEphemeral, Err: err})
			}
			return bumpResult{count: n}
		}
		return bumpResult{allowed: true, count: n}
	}

	g.cacheError("bump", lastErr)
	return bumpResult{allowed: true, degraded: true}
}

// decrEphemeral rolls one count back, clamped at zero. One attempt.
func (g *Gate) decrEphemeral(ctx context.Context, key string, ttl time.Duration) error {
	if dec, ok := g.cache.(AtomicIncrer); ok {
		_, err := dec.Decr(ctx, key)
		return err
	}
	current, found, err := g.cache.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	n, _ := strconv.ParseInt(current, 10, 64)
	if n <= 0 {
		return nil
	}
	return g.cache.Put(ctx, key, strconv.FormatInt(n-1, 10), ttl)
}

func (g *Gate) cacheError(op string, err error) {
	if err == nil {
		return
	}
	g.meter.OnStoreError(StoreErrorEvent{Store: "ephemeral", Op: op, Err: err})
}
