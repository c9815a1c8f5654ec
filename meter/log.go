// Package meter provides ready-made Meter implementations: structured
// logging via slog and Prometheus counters.
package meter

import (
	"errors"
	"log/slog"

	"github.com/arcanahq/usagegate"
)

// LogMeter logs enforcement events through slog. Allowed decisions log at
// Debug so the happy path stays quiet; rejections at Info; degraded
// decisions and store failures at Warn.
type LogMeter struct {
	log *slog.Logger
}

var _ usagegate.Meter = (*LogMeter)(nil)

// NewLogMeter returns a LogMeter on the given logger. A nil logger uses
// slog.Default.
func NewLogMeter(log *slog.Logger) *LogMeter {
	if log == nil {
		log = slog.Default()
	}
	return &LogMeter{log: log}
}

func (m *LogMeter) OnDecision(event usagegate.DecisionEvent) {
	attrs := []any{
		slog.String("feature", string(event.Feature)),
		slog.String("outcome", event.Outcome.String()),
		slog.String("tier", string(event.Tier)),
		slog.Int64("used", event.Used),
		slog.Int64("limit", event.Limit),
	}
	switch event.Outcome {
	case usagegate.OutcomeRejected:
		attrs = append(attrs, slog.Bool("tier_limited", event.TierLimited))
		m.log.Info("quota rejected", attrs...)
	case usagegate.OutcomeDegraded:
		m.log.Warn("quota degraded, allowing uncounted", attrs...)
	default:
		m.log.Debug("quota allowed", attrs...)
	}
}

func (m *LogMeter) OnRelease(event usagegate.ReleaseEvent) {
	if event.Err != nil {
		m.log.Warn("quota release failed",
			slog.String("feature", string(event.Feature)),
			slog.String("kind", string(event.Kind)),
			slog.String("error", event.Err.Error()))
		return
	}
	m.log.Debug("quota released",
		slog.String("feature", string(event.Feature)),
		slog.String("kind", string(event.Kind)))
}

func (m *LogMeter) OnStoreError(event usagegate.StoreErrorEvent) {
	// A detected increment race is expected under contention and already
	// compensated, so it logs below warning.
	if errors.Is(event.Err, usagegate.ErrRaceDetected) {
		m.log.Info("quota increment race compensated",
			slog.String("store", event.Store),
			slog.String("op", event.Op))
		return
	}
	m.log.Warn("quota store error",
		slog.String("store", event.Store),
		slog.String("op", event.Op),
		slog.String("error", event.Err.Error()))
}
