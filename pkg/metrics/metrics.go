package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry (C2) gauges.
	ProcessEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentpool_process_entries_total",
			Help: "Current process registry entries by owner and status",
		},
		[]string{"owner", "status"},
	)

	// Memory accountant (C3) gauges.
	ReservationUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentpool_reservation_usage",
			Help: "Current reserved fraction of the effective memory cap, by provider and host:port",
		},
		[]string{"provider", "host_port"},
	)

	ReservationEffectiveCap = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentpool_reservation_effective_cap",
			Help: "The detected architecture's effective memory utilisation cap",
		},
	)

	// Admission queue (C4) gauges/counters.
	AdmissionQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentpool_admission_queue_depth",
			Help: "Total waiters currently parked across all sessions",
		},
	)

	AdmissionOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentpool_admission_outcomes_total",
			Help: "Admission waiter outcomes by result",
		},
		[]string{"result"}, // admitted, cancelled, session-ended
	)

	AdmissionWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentpool_admission_wait_duration_seconds",
			Help:    "Time a waiter spent parked in the admission queue before a terminal result",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Backend (C1) counters/histograms, by transport.
	BackendStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentpool_backend_starts_total",
			Help: "Total backend start attempts by transport and outcome",
		},
		[]string{"transport", "outcome"}, // outcome: success, launch-failed, ssh-failed, docker-failed, health-timeout
	)

	BackendStartDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentpool_backend_start_duration_seconds",
			Help:    "Time from launch to a confirmed-healthy backend, by transport",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"transport"},
	)

	BackendStopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentpool_backend_stops_total",
			Help: "Total backend stop attempts by transport and outcome",
		},
		[]string{"transport", "outcome"}, // outcome: graceful, forced
	)

	HealthProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentpool_health_probe_duration_seconds",
			Help:    "Time a readiness probe poll loop took to observe healthy or time out, by provider",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "outcome"}, // outcome: healthy, timeout
	)

	// Dependency planner (C5) counters.
	PlannerDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentpool_planner_decisions_total",
			Help: "Planner batch decisions by strategy",
		},
		[]string{"strategy"}, // parallel, sequential, rejected-cycle
	)

	// Maintenance scheduler (C8) counters.
	GraphDecayRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentpool_graph_decay_runs_total",
			Help: "Total completed confidence-decay runs",
		},
	)

	GraphCleanupRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentpool_graph_cleanup_removed_total",
			Help: "Total entities/relations removed by cleanup pass",
		},
		[]string{"pass"}, // low-confidence, old-nodes
	)
)

func init() {
	prometheus.MustRegister(
		ProcessEntriesTotal,
		ReservationUsage,
		ReservationEffectiveCap,
		AdmissionQueueDepth,
		AdmissionOutcomesTotal,
		AdmissionWaitDuration,
		BackendStartsTotal,
		BackendStartDuration,
		BackendStopsTotal,
		HealthProbeDuration,
		PlannerDecisionsTotal,
		GraphDecayRunsTotal,
		GraphCleanupRemovedTotal,
	)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
