package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	apiRequestsTotal         *prometheus.CounterVec
	apiLatencySeconds        *prometheus.HistogramVec
	apiErrorsTotal           *prometheus.CounterVec
	pipelineRunsTotal        *prometheus.CounterVec
	gradesRecordedTotal      prometheus.Counter
	submissionsReopenedTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors for the API and the
// grading pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cegas",
			Name:      "api_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cegas",
			Name:      "api_latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cegas",
			Name:      "api_errors_total",
			Help:      "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		pipelineRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cegas",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs per submission, labelled by outcome.",
		}, []string{"outcome"})

		gradesRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cegas",
			Name:      "grades_recorded_total",
			Help:      "Total number of per-question grades written.",
		})

		submissionsReopenedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cegas",
			Name:      "submissions_reopened_total",
			Help:      "Total number of graded submissions reopened.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			pipelineRunsTotal,
			gradesRecordedTotal,
			submissionsReopenedTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// PipelineRuns exposes the per-outcome pipeline run counter.
func PipelineRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return pipelineRunsTotal
}

// GradesRecorded exposes the grade write counter.
func GradesRecorded() prometheus.Counter {
	RegisterMetrics()
	return gradesRecordedTotal
}

// SubmissionsReopened exposes the reopen counter.
func SubmissionsReopened() prometheus.Counter {
	RegisterMetrics()
	return submissionsReopenedTotal
}
