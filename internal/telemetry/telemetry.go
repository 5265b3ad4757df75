// Package telemetry exposes the engine's Prometheus metrics. A nil
// *Telemetry is a valid no-op recorder so library code and tests never need
// a registry.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry holds the collectors for one engine instance.
type Telemetry struct {
	actionsTotal   *prometheus.CounterVec
	verdictsTotal  *prometheus.CounterVec
	degradedTotal  prometheus.Counter
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	itemsCollected prometheus.Histogram
}

// New registers the engine collectors on reg.
func New(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "actions_total",
			Help:      "Tool invocations executed, by tool.",
		}, []string{"tool"}),
		verdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "gate_verdicts_total",
			Help:      "Quality gate verdicts, by follow-up action tag.",
		}, []string{"action"}),
		degradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "gate_degraded_passes_total",
			Help:      "Verdicts synthesized locally because the oracle was unavailable.",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "runs_total",
			Help:      "Completed collection runs, by stop reason.",
		}, []string{"reason"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radar",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a collection run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		itemsCollected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radar",
			Name:      "run_items_collected",
			Help:      "Deduplicated items collected per run.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}
	reg.MustRegister(t.actionsTotal, t.verdictsTotal, t.degradedTotal,
		t.runsTotal, t.runDuration, t.itemsCollected)
	return t
}

func (t *Telemetry) RecordAction(tool string) {
	if t == nil {
		return
	}
	t.actionsTotal.WithLabelValues(tool).Inc()
}

func (t *Telemetry) RecordVerdict(action string, degraded bool) {
	if t == nil {
		return
	}
	t.verdictsTotal.WithLabelValues(action).Inc()
	if degraded {
		t.degradedTotal.Inc()
	}
}

func (t *Telemetry) RecordRun(reason string, duration time.Duration, items int) {
	if t == nil {
		return
	}
	t.runsTotal.WithLabelValues(reason).Inc()
	t.runDuration.Observe(duration.Seconds())
	t.itemsCollected.Observe(float64(items))
}
