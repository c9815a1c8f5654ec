package usagegate

import "errors"

// Sentinel errors.
var (
	// ErrLimitReached reports an exhausted quota or exceeded rate window.
	// Always recoverable by the user (wait or upgrade), never an
	// application error.
	ErrLimitReached = errors.New("usagegate: limit reached")

	// ErrStoreUnavailable reports that a backing store cannot serve
	// requests, typically a missing table pending migration. Enforcers
	// recover locally by failing open.
	ErrStoreUnavailable = errors.New("usagegate: store unavailable")

	// ErrRaceDetected reports that a verification read on the ephemeral
	// store found a concurrent writer crossed the limit after this
	// request's write landed. The request is rejected post hoc.
	ErrRaceDetected = errors.New("usagegate: concurrent limit race detected")

	// ErrUnknownCounter reports a counter name outside the closed set.
	ErrUnknownCounter = errors.New("usagegate: unknown counter")
)

// IsUnavailable reports whether err classifies as store infrastructure
// being unavailable rather than a per-request failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
