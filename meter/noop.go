package meter

import "github.com/arcanahq/usagegate"

// Noop is a meter that discards every event.
type Noop struct{}

var _ usagegate.Meter = Noop{}

func (Noop) OnDecision(usagegate.DecisionEvent)     {}
func (Noop) OnRelease(usagegate.ReleaseEvent)       {}
func (Noop) OnStoreError(usagegate.StoreErrorEvent) {}
