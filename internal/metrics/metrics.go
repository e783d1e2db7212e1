// Package metrics exposes Prometheus collectors for the live daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/lev-meanrev-bot/internal/model"
)

// Metrics holds the collectors of one live process.
type Metrics struct {
	registry *prometheus.Registry

	Decisions      *prometheus.CounterVec // labels: action, target
	CycleErrors    prometheus.Counter
	LockContention prometheus.Counter
	CycleDuration  prometheus.Histogram
	Equity         prometheus.Gauge
	DaysHeld       prometheus.Gauge
	Held           *prometheus.GaugeVec // labels: instrument; 1 for the held one
	Confidence     prometheus.Gauge
	LastCycle      prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meanrev_decisions_total",
			Help: "Decisions produced by live cycles",
		}, []string{"action", "target"}),
		CycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meanrev_cycle_errors_total",
			Help: "Live cycles that aborted with an error hold",
		}),
		LockContention: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meanrev_lock_contention_total",
			Help: "Cycle triggers rejected because another cycle held the run lock",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meanrev_cycle_duration_seconds",
			Help:    "Wall time of one live cycle",
			Buckets: prometheus.DefBuckets,
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meanrev_equity",
			Help: "Marked equity of the live position after the last saved cycle",
		}),
		DaysHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meanrev_days_held",
			Help: "Cycles the current instrument has been held",
		}),
		Held: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meanrev_held_instrument",
			Help: "1 for the instrument currently held, 0 otherwise",
		}, []string{"instrument"}),
		Confidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meanrev_decision_confidence",
			Help: "Confidence of the last decision",
		}),
		LastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meanrev_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed cycle",
		}),
	}
	m.registry.MustRegister(
		m.Decisions, m.CycleErrors, m.LockContention, m.CycleDuration,
		m.Equity, m.DaysHeld, m.Held, m.Confidence, m.LastCycle,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records the outcome of one cycle. st is ignored for error holds
// because the state was not saved.
func (m *Metrics) ObserveCycle(d model.Decision, st model.PositionState, started, finished time.Time) {
	m.CycleDuration.Observe(finished.Sub(started).Seconds())
	m.LastCycle.Set(float64(finished.Unix()))
	m.Decisions.WithLabelValues(string(d.Action), d.Target.String()).Inc()
	if d.IsError() {
		m.CycleErrors.Inc()
		return
	}
	m.Confidence.Set(d.Confidence)
	m.Equity.Set(st.Equity)
	m.DaysHeld.Set(float64(st.DaysHeld))
	for _, i := range []model.Instrument{model.Safe, model.LongLeveraged, model.ShortLeveraged} {
		v := 0.0
		if i == st.Held {
			v = 1
		}
		m.Held.WithLabelValues(i.String()).Set(v)
	}
}
