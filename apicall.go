package usagegate

import (
	"context"
	"fmt"
)

// APICallRequest identifies the API-key principal making a programmatic
// call. API keys always resolve to a registered user, so there is no
// anonymous path and no ephemeral fallback.
type APICallRequest struct {
	Principal Principal
}

// EnforceAPICall gates programmatic access behind a minimum tier and a
// monthly call ceiling on the durable counter store. If the store is
// unusable the call is allowed (fail open).
func (g *Gate) EnforceAPICall(ctx context.Context, req APICallRequest) Decision {
	now := g.now()
	p := req.Principal
	month := monthKey(now)
	reset := nextMonthStart(now)
	policy := g.cfg.PolicyFor(p.Tier, p.Status)

	if !policy.APIAccess || (policy.APICallsPerMonth != Unlimited && policy.APICallsPerMonth <= 0) {
		return g.decide(p, FeatureAPICalls, Decision{
			Outcome:     OutcomeRejected,
			Limit:       0,
			ResetAt:     reset,
			TierLimited: true,
			Message:     "API access requires the pro plan.",
		})
	}

	if p.ID == "" || !g.counterUsable(now) {
		return g.decide(p, FeatureAPICalls, Decision{Outcome: OutcomeDegraded, Limit: policy.APICallsPerMonth, ResetAt: reset})
	}

	changed, err := g.counters.Increment(ctx, IncrementArgs{
		PrincipalID: p.ID,
		Month:       month,
		Counter:     CounterAPICalls,
		Limit:       policy.APICallsPerMonth,
		NowMs:       now.UnixMilli(),
	})
	if err != nil {
		g.counterError("increment", err, now)
		return g.decide(p, FeatureAPICalls, Decision{Outcome: OutcomeDegraded, Limit: policy.APICallsPerMonth, ResetAt: reset})
	}
	g.health.RecordSuccess()

	used := g.usedCount(ctx, p.ID, month, CounterAPICalls)
	if !changed {
		return g.decide(p, FeatureAPICalls, Decision{
			Outcome: OutcomeRejected,
			Used:    used,
			Limit:   policy.APICallsPerMonth,
			ResetAt: reset,
			Message: fmt.Sprintf("Monthly API call limit of %d reached.", policy.APICallsPerMonth),
		})
	}
	return g.decide(p, FeatureAPICalls, Decision{
		Outcome:     OutcomeAllowed,
		Used:        used,
		Limit:       policy.APICallsPerMonth,
		ResetAt:     reset,
		Reservation: durableReservation(p.ID, month, CounterAPICalls),
	})
}

// ReleaseAPICall refunds an API call charge after the proxied request
// failed downstream.
func (g *Gate) ReleaseAPICall(ctx context.Context, res *Reservation) {
	g.release(ctx, FeatureAPICalls, res)
}
