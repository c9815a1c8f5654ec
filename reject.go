package usagegate

import (
	"math"
	"time"
)

// Rejection is the HTTP-facing payload handlers serialize for a rejected
// decision. Reservations are handler-internal and never appear here.
type Rejection struct {
	Error         string `json:"error"`
	TierLimited   bool   `json:"tierLimited"`
	CurrentTier   Tier   `json:"currentTier"`
	CurrentStatus string `json:"currentStatus"`
	EffectiveTier Tier   `json:"effectiveTier"`
	Limit         *int64 `json:"limit"`
	Used          int64  `json:"used"`
	ResetAt       string `json:"resetAt"`
}

// NewRejection builds the payload for a rejected decision. Limit is null
// when no ceiling applied.
func NewRejection(p Principal, d Decision) Rejection {
	r := Rejection{
		Error:         d.Message,
		TierLimited:   d.TierLimited,
		CurrentTier:   p.Tier,
		CurrentStatus: p.Status,
		EffectiveTier: EffectiveTier(p.Tier, p.Status),
		Used:          d.Used,
		ResetAt:       d.ResetAt.UTC().Format(time.RFC3339),
	}
	if d.Limit != Unlimited {
		limit := d.Limit
		r.Limit = &limit
	}
	return r
}

// Err returns ErrLimitReached for rejected decisions and nil otherwise, for
// callers that propagate enforcement results as errors.
func (d Decision) Err() error {
	if d.Outcome == OutcomeRejected {
		return ErrLimitReached
	}
	return nil
}

// RetryAfterSeconds returns the Retry-After header value in whole seconds,
// or 0 when the rejection is tier-bounded rather than time-bounded.
func (d Decision) RetryAfterSeconds() int64 {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int64(math.Ceil(d.RetryAfter.Seconds()))
}
