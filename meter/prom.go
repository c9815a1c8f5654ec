package meter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arcanahq/usagegate"
)

// PromMeter exports enforcement events as Prometheus counters.
type PromMeter struct {
	decisions   *prometheus.CounterVec
	releases    *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
}

var _ usagegate.Meter = (*PromMeter)(nil)

// NewPromMeter registers the usagegate counters on reg and returns a
// PromMeter. A nil registerer uses the default registry.
func NewPromMeter(reg prometheus.Registerer) *PromMeter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PromMeter{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usagegate",
			Name:      "decisions_total",
			Help:      "Enforcement decisions by feature and outcome.",
		}, []string{"feature", "outcome"}),
		releases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usagegate",
			Name:      "releases_total",
			Help:      "Reservation releases by feature, kind and result.",
		}, []string{"feature", "kind", "result"}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usagegate",
			Name:      "store_errors_total",
			Help:      "Backing store errors by store and operation.",
		}, []string{"store", "op"}),
	}
}

func (m *PromMeter) OnDecision(event usagegate.DecisionEvent) {
	m.decisions.WithLabelValues(string(event.Feature), event.Outcome.String()).Inc()
}

func (m *PromMeter) OnRelease(event usagegate.ReleaseEvent) {
	result := "ok"
	if event.Err != nil {
		result = "error"
	}
	m.releases.WithLabelValues(string(event.Feature), string(event.Kind), result).Inc()
}

func (m *PromMeter) OnStoreError(event usagegate.StoreErrorEvent) {
	m.storeErrors.WithLabelValues(event.Store, event.Op).Inc()
}

// MultiMeter fans events out to several meters, typically a LogMeter plus
// a PromMeter.
type MultiMeter []usagegate.Meter

var _ usagegate.Meter = (MultiMeter)(nil)

func (mm MultiMeter) OnDecision(event usagegate.DecisionEvent) {
	for _, m := range mm {
		m.OnDecision(event)
	}
}

func (mm MultiMeter) OnRelease(event usagegate.ReleaseEvent) {
	for _, m := range mm {
		m.OnRelease(event)
	}
}

func (mm MultiMeter) OnStoreError(event usagegate.StoreErrorEvent) {
	for _, m := range mm {
		m.OnStoreError(event)
	}
}
