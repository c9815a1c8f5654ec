package usagegate

import "context"

// TTSRequest identifies who is asking for speech synthesis.
type TTSRequest struct {
	Principal   Principal
	Fingerprint string
}

// EnforceTTS runs the two stacked text-to-speech checks: a fixed-window
// request-rate limit keyed by client fingerprint (ephemeral store only),
// then the monthly tier quota with the same dual-path strategy as readings.
// The rate check runs first and short-circuits the monthly check.
//
// The two rejection modes carry different remedies: a rate rejection has
// TierLimited false and a RetryAfter until the window boundary; a monthly
// rejection has TierLimited true.
func (g *Gate) EnforceTTS(ctx context.Context, req TTSRequest) Decision {
	now := g.now()
	p := req.Principal

	if g.cache != nil && req.Fingerprint != "" {
		window := g.cfg.TTSRate.Duration()
		hash := HashFingerprint(g.cfg.FingerprintSecret, req.Fingerprint)
		key := rateBucketKey(FeatureTTSRate, hash, windowBucket(now, window))

		r := g.bumpEphemeral(ctx, FeatureTTSRate, key, g.cfg.TTSRate.MaxRequests, window)
		if !r.degraded && !r.allowed {
			end := windowEnd(now, window)
			return g.decide(p, FeatureTTSRate, Decision{
				Outcome:    OutcomeRejected,
				Used:       r.count,
				Limit:      g.cfg.TTSRate.MaxRequests,
				ResetAt:    end,
				RetryAfter: end.Sub(now),
				Message:    "Too many requests. Please wait a moment and try again.",
			})
		}
	}

	policy := g.cfg.PolicyFor(p.Tier, p.Status)
	return g.enforceMonthly(ctx, p, req.Fingerprint, FeatureTTS, CounterTTS, policy.MonthlyTTS, now)
}

// ReleaseTTS refunds the monthly charge after a failed synthesis call.
// Rate-window counts are not refunded; the window lapses on its own.
func (g *Gate) ReleaseTTS(ctx context.Context, res *Reservation) {
	g.release(ctx, FeatureTTS, res)
}
