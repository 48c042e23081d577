package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	submissionOutcomes  *prometheus.CounterVec
	submissionDuration  *prometheus.HistogramVec
	statusQueriesTotal  *prometheus.CounterVec
	gradingActionsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lms_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		submissionOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_submission_outcomes_total",
			Help: "Submit pipeline results by outcome and failing step.",
		}, []string{"outcome", "step"})

		submissionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lms_submission_duration_seconds",
			Help:    "Time spent in the submit pipeline.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"outcome"})

		statusQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_submission_status_queries_total",
			Help: "Submission status queries by result.",
		}, []string{"result"})

		gradingActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_grading_actions_total",
			Help: "Grading actions by resulting submission status.",
		}, []string{"status"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			submissionOutcomes,
			submissionDuration,
			statusQueriesTotal,
			gradingActionsTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SubmissionOutcomes counts submit pipeline results.
func SubmissionOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionOutcomes
}

// SubmissionDuration observes submit pipeline latency.
func SubmissionDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return submissionDuration
}

// StatusQueries counts submission status queries.
func StatusQueries() *prometheus.CounterVec {
	RegisterMetrics()
	return statusQueriesTotal
}

// GradingActions counts grading actions.
func GradingActions() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingActionsTotal
}
