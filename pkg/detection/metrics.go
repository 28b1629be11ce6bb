package detection

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of the detection engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec   // Runs by mode and outcome
	RunDuration   *prometheus.HistogramVec // Run latency by mode
	FindingsTotal *prometheus.CounterVec   // Findings by conflict type and result
	SkippedTotal  *prometheus.CounterVec   // Skipped inputs by detector
	FailuresTotal *prometheus.CounterVec   // Failed runs by detector or stage
}

// NewMetrics creates the engine metrics and registers them with registry.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "landreg_detection_runs_total",
			Help: "Total detection runs by mode and outcome",
		}, []string{"mode", "outcome"}), // outcome: success, failure, not_found
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "landreg_detection_run_duration_seconds",
			Help:    "Time taken by a detection run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 120},
		}, []string{"mode"}),
		FindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "landreg_detection_findings_total",
			Help: "Findings produced by conflict type and whether they created a record",
		}, []string{"conflict_type", "result"}), // result: created, existing
		SkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "landreg_detection_skipped_inputs_total",
			Help: "Inputs a detector could not use, such as invalid geometry",
		}, []string{"detector"}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "landreg_detection_failures_total",
			Help: "Detection runs rolled back by failing detector or stage",
		}, []string{"detector"}),
	}
	if registry != nil {
		if err := registry.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register detection metrics: %w", err)
		}
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.RunsTotal.Describe(ch)
	m.RunDuration.Describe(ch)
	m.FindingsTotal.Describe(ch)
	m.SkippedTotal.Describe(ch)
	m.FailuresTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.RunsTotal.Collect(ch)
	m.RunDuration.Collect(ch)
	m.FindingsTotal.Collect(ch)
	m.SkippedTotal.Collect(ch)
	m.FailuresTotal.Collect(ch)
}

func (m *Metrics) observeRun(mode, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(mode, outcome).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(seconds)
}

func (m *Metrics) finding(conflictType, result string) {
	if m == nil {
		return
	}
	m.FindingsTotal.WithLabelValues(conflictType, result).Inc()
}

func (m *Metrics) skipped(detector string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(detector).Inc()
}

func (m *Metrics) failure(detector string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(detector).Inc()
}
