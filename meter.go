package usagegate

// Meter observes enforcement events for monitoring/logging.
type Meter interface {
	// OnDecision is called for every enforcement check.
	OnDecision(event DecisionEvent)

	// OnRelease is called when a reservation is released.
	OnRelease(event ReleaseEvent)

	// OnStoreError is called when a backing store misbehaves.
	OnStoreError(event StoreErrorEvent)
}

// DecisionEvent describes one enforcement check.
type DecisionEvent struct {
	Feature     Feature
	Outcome     Outcome
	Tier        Tier
	TierLimited bool
	Used        int64
	Limit       int64
}

// ReleaseEvent describes a reservation release attempt.
type ReleaseEvent struct {
	Feature Feature
	Kind    ReservationKind
	Err     error // nil on clean release
}

// StoreErrorEvent describes a store failure or a detected race.
type StoreErrorEvent struct {
	Store string // "counter" or "ephemeral"
	Op    string
	Err   error
}

// noopMeter is a meter that does nothing.
type noopMeter struct{}

func (noopMeter) OnDecision(DecisionEvent)     {}
func (noopMeter) OnRelease(ReleaseEvent)       {}
func (noopMeter) OnStoreError(StoreErrorEvent) {}
