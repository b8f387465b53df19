package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	casesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vt_integration_cases_total",
			Help: "Total number of integration test cases executed, by outcome.",
		},
		[]string{"status"},
	)
	assertionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vt_integration_assertions_total",
			Help: "Total number of query assertions evaluated, by outcome.",
		},
		[]string{"status"},
	)
	caseDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vt_integration_case_duration_seconds",
			Help:    "End-to-end duration of a single test case including pipeline wait.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
	pipelineWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vt_integration_pipeline_wait_seconds",
			Help:    "Time spent waiting for a variant transform pipeline to finish.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
	suiteRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vt_integration_suite_runs_total",
			Help: "Total number of suite runs, by outcome.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		casesTotal,
		assertionsTotal,
		caseDurationSeconds,
		pipelineWaitSeconds,
		suiteRunsTotal,
	)
}

func ObserveCase(passed bool, elapsed time.Duration) {
	casesTotal.WithLabelValues(statusLabel(passed)).Inc()
	caseDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveAssertion(passed bool) {
	assertionsTotal.WithLabelValues(statusLabel(passed)).Inc()
}

func ObservePipelineWait(elapsed time.Duration) {
	pipelineWaitSeconds.Observe(elapsed.Seconds())
}

func ObserveSuiteRun(passed bool) {
	suiteRunsTotal.WithLabelValues(statusLabel(passed)).Inc()
}

func statusLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
