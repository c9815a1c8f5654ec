package usagegate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Gate enforces monthly usage quotas and short-window rate limits for the
// product's metered actions. It delegates all mutual exclusion to the
// backing stores: the durable counter store's conditional increment is the
// only operation required to be atomic, and the ephemeral path accepts a
// bounded race window by design.
//
// A Gate never fails a caller's primary action on its own: every storage
// failure degrades to an allow with the error reported to the meter.
type Gate struct {
	cfg      Config
	counters CounterStore
	cache    EphemeralStore
	meter    Meter
	health   *StoreHealth
	now      func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithCounterStore sets the durable counter store.
func WithCounterStore(cs CounterStore) Option {
	return func(g *Gate) { g.counters = cs }
}

// WithEphemeralStore sets the TTL cache used for rate windows and for the
// fallback counter path.
func WithEphemeralStore(es EphemeralStore) Option {
	return func(g *Gate) { g.cache = es }
}

// WithMeter sets the meter.
func WithMeter(m Meter) Option {
	return func(g *Gate) { g.meter = m }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New creates a Gate. Either store may be omitted; enforcement degrades to
// fail-open for whatever paths have no backing store.
func New(cfg Config, opts ...Option) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gate{
		cfg:    cfg,
		health: NewStoreHealth(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.meter == nil {
		g.meter = noopMeter{}
	}
	return g, nil
}

// UsageSnapshot is a read-only view of the current month for display.
type UsageSnapshot struct {
	Month        string
	Readings     int64
	TTS          int64
	APICalls     int64
	ReadingLimit int64
	TTSLimit     int64
	APICallLimit int64
	ResetAt      time.Time
}

// CurrentUsage returns the principal's counters for the current month with
// the resolved limits. Never fails the caller: storage errors yield a zero
// snapshot.
func (g *Gate) CurrentUsage(ctx context.Context, p Principal) UsageSnapshot {
	now := g.now()
	policy := g.cfg.PolicyFor(p.Tier, p.Status)
	snap := UsageSnapshot{
		Month:        monthKey(now),
		ReadingLimit: policy.MonthlyReadings,
		TTSLimit:     policy.MonthlyTTS,
		APICallLimit: policy.APICallsPerMonth,
		ResetAt:      nextMonthStart(now),
	}

	if p.ID == "" || g.counters == nil {
		return snap
	}
	row, err := g.counters.Usage(ctx, p.ID, snap.Month)
	if err != nil {
		g.counterError("usage", err, now)
		return snap
	}
	if row != nil {
		snap.Readings = row.Readings
		snap.TTS = row.TTS
		snap.APICalls = row.APICalls
	}
	return snap
}

// enforceMonthly runs the dual-path monthly quota check shared by readings
// and TTS: durable counter first (authenticated id, or a synthetic guest id
// from the hashed fingerprint), ephemeral fallback when the durable store
// is unusable, fail-open when neither path applies.
func (g *Gate) enforceMonthly(ctx context.Context, p Principal, fingerprint string, feature Feature, counter Counter, limit int64, now time.Time) Decision {
	month := monthKey(now)
	reset := nextMonthStart(now)

	var hash string
	if fingerprint != "" {
		hash = HashFingerprint(g.cfg.FingerprintSecret, fingerprint)
	}

	// Unlimited tiers are charged for display only; a failed action on an
	// unlimited plan has nothing user-visible to refund.
	if limit == Unlimited {
		used := g.displayCharge(ctx, p.ID, month, counter, now)
		return g.decide(p, feature, Decision{Outcome: OutcomeAllowed, Used: used, Limit: Unlimited, ResetAt: reset})
	}

	// A zero ceiling rejects without touching any store.
	if limit == 0 {
		return g.decide(p, feature, Decision{
			Outcome:     OutcomeRejected,
			Limit:       0,
			ResetAt:     reset,
			TierLimited: true,
			Message:     "Your plan does not include this feature.",
		})
	}

	principalID := p.ID
	if principalID == "" && hash != "" {
		principalID = guestID(hash)
	}

	if principalID != "" && g.counterUsable(now) {
		changed, err := g.counters.Increment(ctx, IncrementArgs{
			PrincipalID: principalID,
			Month:       month,
			Counter:     counter,
			Limit:       limit,
			NowMs:       now.UnixMilli(),
		})
		if err == nil {
			g.health.RecordSuccess()
			used := g.usedCount(ctx, principalID, month, counter)
			if changed {
				return g.decide(p, feature, Decision{
					Outcome:     OutcomeAllowed,
					Used:        used,
					Limit:       limit,
					ResetAt:     reset,
					Reservation: durableReservation(principalID, month, counter),
				})
			}
			return g.decide(p, feature, Decision{
				Outcome:     OutcomeRejected,
				Used:        used,
				Limit:       limit,
				ResetAt:     reset,
				TierLimited: true,
				Message:     limitMessage(feature, limit),
			})
		}
		g.counterError("increment", err, now)
		// fall through to the ephemeral path
	}

	if g.cache != nil && hash != "" {
		key := ephemeralKey(feature, hash, month)
		r := g.bumpEphemeral(ctx, feature, key, limit, monthlyTTL)
		if !r.degraded {
			if !r.allowed {
				return g.decide(p, feature, Decision{
					Outcome:     OutcomeRejected,
					Used:        r.count,
					Limit:       limit,
					ResetAt:     reset,
					TierLimited: true,
					Message:     limitMessage(feature, limit),
				})
			}
			return g.decide(p, feature, Decision{
				Outcome: OutcomeAllowed,
				Used:    r.count,
				Limit:   limit,
				ResetAt: reset,
				Reservation: &Reservation{
					ID:   uuid.New().String(),
					Kind: ReservationEphemeral,
					Key:  key,
					TTL:  monthlyTTL,
				},
			})
		}
	}

	// Quota tracking degraded; never block the product on it.
	return g.decide(p, feature, Decision{Outcome: OutcomeDegraded, Limit: limit, ResetAt: reset})
}

// displayCharge increments a counter with no ceiling so unlimited tiers
// still accumulate usage for the account page. Best effort.
func (g *Gate) displayCharge(ctx context.Context, principalID, month string, counter Counter, now time.Time) int64 {
	if principalID == "" || !g.counterUsable(now) {
		return 0
	}
	_, err := g.counters.Increment(ctx, IncrementArgs{
		PrincipalID: principalID,
		Month:       month,
		Counter:     counter,
		Limit:       Unlimited,
		NowMs:       now.UnixMilli(),
	})
	if err != nil {
		g.counterError("increment", err, now)
		return 0
	}
	g.health.RecordSuccess()
	return g.usedCount(ctx, principalID, month, counter)
}

// usedCount reads the current counter value for reporting. Best effort:
// returns 0 when the row cannot be read.
func (g *Gate) usedCount(ctx context.Context, principalID, month string, counter Counter) int64 {
	row, err := g.counters.Usage(ctx, principalID, month)
	if err != nil {
		g.meter.OnStoreError(StoreErrorEvent{Store: "counter", Op: "usage", Err: err})
		return 0
	}
	if row == nil {
		return 0
	}
	return row.Count(counter)
}

// release rolls back a provisional charge. Best effort, one attempt; a
// failed release means one action was slightly overcharged.
func (g *Gate) release(ctx context.Context, feature Feature, res *Reservation) {
	if res == nil {
		return
	}
	switch res.Kind {
	case ReservationDurable:
		if g.counters == nil {
			return
		}
		err := g.counters.Decrement(ctx, res.PrincipalID, res.Month, res.Counter, g.now().UnixMilli())
		g.meter.OnRelease(ReleaseEvent{Feature: feature, Kind: res.Kind, Err: err})
	case ReservationEphemeral:
		if g.cache == nil {
			return
		}
		err := g.decrEphemeral(ctx, res.Key, res.TTL)
		g.meter.OnRelease(ReleaseEvent{Feature: feature, Kind: res.Kind, Err: err})
	}
}

func (g *Gate) counterUsable(now time.Time) bool {
	return g.counters != nil && g.health.Available(now)
}

func (g *Gate) counterError(op string, err error, now time.Time) {
	g.meter.OnStoreError(StoreErrorEvent{Store: "counter", Op: op, Err: err})
	g.health.RecordFailure(now)
}

func (g *Gate) decide(p Principal, feature Feature, d Decision) Decision {
	g.meter.OnDecision(DecisionEvent{
		Feature:     feature,
		Outcome:     d.Outcome,
		Tier:        p.Tier,
		TierLimited: d.TierLimited,
		Used:        d.Used,
		Limit:       d.Limit,
	})
	return d
}

func durableReservation(principalID, month string, counter Counter) *Reservation {
	return &Reservation{
		ID:          uuid.New().String(),
		Kind:        ReservationDurable,
		PrincipalID: principalID,
		Month:       month,
		Counter:     counter,
	}
}

func limitMessage(feature Feature, limit int64) string {
	switch feature {
	case FeatureReadings:
		return fmt.Sprintf("Monthly reading limit of %d reached. Upgrade your plan for more readings.", limit)
	case FeatureTTS:
		return fmt.Sprintf("Monthly text-to-speech limit of %d reached. Upgrade your plan for more narration.", limit)
	default:
		return fmt.Sprintf("Monthly limit of %d reached.", limit)
	}
}
