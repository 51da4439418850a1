package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for availability and matching flows.
type EngineMetrics struct {
	calendarFallbacks *prometheus.CounterVec
	oracleOutcomes    *prometheus.CounterVec
	oracleLatency     *prometheus.HistogramVec
	persistFailures   *prometheus.CounterVec
	slotsReturned     prometheus.Histogram
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		calendarFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "therapymatch",
			Subsystem: "availability",
			Name:      "calendar_fallback_total",
			Help:      "Availability requests served from the static template because the busy source failed",
		}, []string{"calendar_kind"}),
		oracleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "therapymatch",
			Subsystem: "matching",
			Name:      "oracle_outcome_total",
			Help:      "Scoring runs by outcome (ok, fallback) and reason",
		}, []string{"outcome", "reason"}),
		oracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "therapymatch",
			Subsystem: "matching",
			Name:      "oracle_latency_seconds",
			Help:      "Latency of scoring oracle calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"outcome"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "therapymatch",
			Subsystem: "matching",
			Name:      "persist_failures_total",
			Help:      "Match upserts that failed and were skipped",
		}, []string{"operation"}),
		slotsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "therapymatch",
			Subsystem: "availability",
			Name:      "slots_returned",
			Help:      "Number of slots returned per availability request",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.calendarFallbacks, m.oracleOutcomes, m.oracleLatency, m.persistFailures, m.slotsReturned)
	return m
}

func (m *EngineMetrics) ObserveCalendarFallback(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.calendarFallbacks.WithLabelValues(kind).Inc()
}

// ObserveOracle records one scoring run. reason is empty for successful runs.
func (m *EngineMetrics) ObserveOracle(fallback bool, reason string, seconds float64) {
	if m == nil {
		return
	}
	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	if reason == "" {
		reason = "none"
	}
	m.oracleOutcomes.WithLabelValues(outcome, reason).Inc()
	m.oracleLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *EngineMetrics) ObservePersistFailure(operation string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(operation).Inc()
}

func (m *EngineMetrics) ObserveSlotsReturned(n int) {
	if m == nil {
		return
	}
	m.slotsReturned.Observe(float64(n))
}
