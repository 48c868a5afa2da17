// Package telemetry collects in-process Prometheus metrics for the
// supervisor. No exporter or push gateway is wired here — transport
// is a collaborator outside this repository's scope (§1); callers can
// register Metrics.Registry with whatever server they run.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the supervisor's metric set.
type Metrics struct {
	Registry *prometheus.Registry

	EventsProcessed  *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	WorkersSpawned   *prometheus.CounterVec
	WorkersStopped   *prometheus.CounterVec
	WorkersActive    *prometheus.GaugeVec
	FilterDenied     *prometheus.CounterVec
	ChainsRegistered prometheus.Gauge
	BatchLatency     *prometheus.HistogramVec
}

// New constructs and registers a Metrics collector against a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Subsystem: "supervisor",
			Name:      "events_processed_total",
			Help:      "Number of events successfully classified to an Object.",
		}, []string{"chain_id"}),

		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Subsystem: "supervisor",
			Name:      "events_dropped_total",
			Help:      "Number of events dropped, by reason.",
		}, []string{"chain_id", "reason"}),

		WorkersSpawned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Subsystem: "worker",
			Name:      "spawned_total",
			Help:      "Number of workers spawned, by object kind.",
		}, []string{"kind"}),

		WorkersStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Subsystem: "worker",
			Name:      "stopped_total",
			Help:      "Number of workers that reported Stopped, by object kind.",
		}, []string{"kind"}),

		WorkersActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "relayer",
			Subsystem: "worker",
			Name:      "active",
			Help:      "Number of currently live workers, by object kind.",
		}, []string{"kind"}),

		FilterDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Subsystem: "filter",
			Name:      "denied_total",
			Help:      "Number of objects denied by the filter pipeline, by reason.",
		}, []string{"reason"}),

		ChainsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relayer",
			Subsystem: "registry",
			Name:      "chains_registered",
			Help:      "Number of chains currently registered.",
		}),

		BatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relayer",
			Subsystem: "supervisor",
			Name:      "batch_processing_seconds",
			Help:      "Time spent processing one event batch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain_id"}),
	}

	reg.MustRegister(
		m.EventsProcessed,
		m.EventsDropped,
		m.WorkersSpawned,
		m.WorkersStopped,
		m.WorkersActive,
		m.FilterDenied,
		m.ChainsRegistered,
		m.BatchLatency,
	)

	return m
}
