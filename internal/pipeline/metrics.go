package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

// Lookup outcomes.
const (
	outcomeFound    = "found"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// Metrics is a private registry of per-run counters.
type Metrics struct {
	reg         *prometheus.Registry
	Lookups     *prometheus.CounterVec
	StoreWrites *prometheus.CounterVec
	Runs        *prometheus.CounterVec
	RunDuration prometheus.Gauge
}

// NewMetrics registers the lookup metrics on a fresh registry.
func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aspsearch_lookups_total",
		Help: "Lookups performed, by outcome.",
	}, []string{"outcome"})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aspsearch_store_writes_total",
		Help: "Record upserts, by result.",
	}, []string{"result"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aspsearch_runs_total",
		Help: "Finished runs, by final state.",
	}, []string{"state"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aspsearch_run_duration_seconds",
		Help: "Wall time of the last run.",
	})

	r.MustRegister(lookups, writes, runs, duration)
	return &Metrics{
		reg:         r,
		Lookups:     lookups,
		StoreWrites: writes,
		Runs:        runs,
		RunDuration: duration,
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return eris.Wrapf(prometheus.WriteToTextfile(path, m.reg), "metrics: write textfile %s", path)
}
