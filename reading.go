package usagegate

import "context"

// ReadingRequest identifies who is asking for a reading.
type ReadingRequest struct {
	Principal Principal

	// Fingerprint is the raw client fingerprint material (IP, header
	// bundle). It is hashed before any storage key is built.
	Fingerprint string
}

// EnforceReading decides whether a reading may be generated for the
// principal this month. Durable counter first, ephemeral fallback, fail
// open when neither store is usable.
//
// On OutcomeAllowed the decision may carry a Reservation; callers release
// it with ReleaseReading if the generation fails downstream, so users are
// not charged for failed attempts.
func (g *Gate) EnforceReading(ctx context.Context, req ReadingRequest) Decision {
	policy := g.cfg.PolicyFor(req.Principal.Tier, req.Principal.Status)
	return g.enforceMonthly(ctx, req.Principal, req.Fingerprint, FeatureReadings, CounterReadings, policy.MonthlyReadings, g.now())
}

// ReleaseReading refunds a reading charge. Best effort: failures are
// reported to the meter, never to the caller.
func (g *Gate) ReleaseReading(ctx context.Context, res *Reservation) {
	g.release(ctx, FeatureReadings, res)
}
