package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports counters to a Prometheus registry.
type Metrics struct {
	events    *prometheus.CounterVec
	runs      *prometheus.CounterVec
	durations *prometheus.HistogramVec
	verdicts  *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cegar_events_total",
			Help: "Analysis events by kind",
		}, []string{"kind"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cegar_partition_runs_total",
			Help: "Partition runs by outcome",
		}, []string{"outcome"}),
		durations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cegar_phase_duration_seconds",
			Help:    "Time spent per partition run and phase",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"phase"}),
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cegar_property_verdicts_total",
			Help: "Final property verdicts",
		}, []string{"verdict"}),
	}
}

// ObserveRun records the counters of one partition run.
func (m *Metrics) ObserveRun(outcome string, c Counters) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	for _, f := range c.Fields() {
		if f.Value > 0 {
			m.events.WithLabelValues(f.Name).Add(float64(f.Value))
		}
	}
	m.durations.WithLabelValues("analysis").Observe(c.Analysis.Seconds())
	m.durations.WithLabelValues("refinement").Observe(c.Refinement.Seconds())
}

// ObserveVerdict counts a final property verdict.
func (m *Metrics) ObserveVerdict(verdict string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(verdict).Inc()
}
