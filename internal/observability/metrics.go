package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
	eventsPublishedTotal     *prometheus.CounterVec
	eventNotifierState       prometheus.Gauge
	quizCompletionsTotal     *prometheus.CounterVec
	submissionEvaluatedTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors exported by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnflow_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnflow_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnflow_events_published_total",
			Help: "Domain events handled by the notifier, by topic and result.",
		}, []string{"topic", "result"})

		eventNotifierState = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "learnflow_event_notifier_state",
			Help: "Event notifier state: 0 unconfigured, 1 connected, 2 failing, 3 closed.",
		})

		quizCompletionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnflow_quiz_completions_total",
			Help: "Completed quiz submissions by pass/fail outcome.",
		}, []string{"passed"})

		submissionEvaluatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnflow_submission_evaluations_total",
			Help: "Exercise submission evaluations by resulting status.",
		}, []string{"status"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			eventsPublishedTotal,
			eventNotifierState,
			quizCompletionsTotal,
			submissionEvaluatedTotal,
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

// EventsPublished counts notifier outcomes per topic.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublishedTotal
}

// EventNotifierState reports the current notifier state.
func EventNotifierState() prometheus.Gauge {
	RegisterMetrics()
	return eventNotifierState
}

// QuizCompletions counts completed quiz submissions.
func QuizCompletions() *prometheus.CounterVec {
	RegisterMetrics()
	return quizCompletionsTotal
}

// SubmissionEvaluations counts evaluated exercise submissions.
func SubmissionEvaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionEvaluatedTotal
}
