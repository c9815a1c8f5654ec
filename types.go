package usagegate

import "time"

// Tier is a subscription level determining quota ceilings.
type Tier string

const (
	TierFree Tier = "free"
	TierPlus Tier = "plus"
	TierPro  Tier = "pro"
)

// StatusActive is the only subscription status that grants a paid tier's
// entitlements; any other status resolves to the free policy.
const StatusActive = "active"

// AuthMethod describes how a principal authenticated.
type AuthMethod string

const (
	AuthSession   AuthMethod = "session"
	AuthAPIKey    AuthMethod = "api_key"
	AuthAnonymous AuthMethod = "anonymous"
)

// Principal is the entity being limited: an authenticated user, an API-key
// holder, or an anonymous client (empty ID, identified by fingerprint).
type Principal struct {
	ID     string
	Tier   Tier
	Status string
	Auth   AuthMethod
}

// Feature is the namespace a quota or rate limit applies to.
type Feature string

const (
	FeatureReadings Feature = "readings"
	FeatureTTS      Feature = "tts"
	FeatureTTSRate  Feature = "tts-rate"
	FeatureAPICalls Feature = "api_calls"
)

// Unlimited marks a limit with no ceiling.
const Unlimited int64 = -1

// Outcome is the result class of an enforcement check.
type Outcome int

const (
	// OutcomeAllowed permits the action; a Reservation may be attached.
	OutcomeAllowed Outcome = iota

	// OutcomeRejected blocks the action (quota exhausted or rate exceeded).
	OutcomeRejected

	// OutcomeDegraded permits the action because the enforcement
	// infrastructure was unavailable. No Reservation is attached.
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an enforcement check.
type Decision struct {
	Outcome Outcome

	// Used is the counter value after this check, best effort.
	Used int64

	// Limit is the ceiling that applied, or Unlimited.
	Limit int64

	// ResetAt is the first instant of the next UTC month for monthly
	// quotas, or the next window boundary for rate limits.
	ResetAt time.Time

	// RetryAfter is nonzero only for time-bounded rejections (rate limits).
	RetryAfter time.Duration

	// TierLimited marks rejections remedied by upgrading rather than waiting.
	TierLimited bool

	// Message is a user-facing explanation, set on rejections.
	Message string

	// Reservation is present only on OutcomeAllowed when a counter was
	// charged. Callers release it if the gated action fails downstream.
	// Never serialize it to clients.
	Reservation *Reservation
}

// Allowed reports whether the action may proceed (allowed or degraded).
func (d Decision) Allowed() bool { return d.Outcome != OutcomeRejected }

// ReservationKind tags which store holds a provisional charge.
type ReservationKind string

const (
	ReservationDurable   ReservationKind = "durable"
	ReservationEphemeral ReservationKind = "ephemeral"
)

// Reservation is a provisional quota charge, redeemable for rollback when
// the gated action fails after the charge landed. Short-lived and in-memory
// only: a crash between charge and release loses the refund.
type Reservation struct {
	ID   string
	Kind ReservationKind

	// Durable reservations identify the counter row.
	PrincipalID string
	Month       string
	Counter     Counter

	// Ephemeral reservations identify the cache key.
	Key string
	TTL time.Duration
}
