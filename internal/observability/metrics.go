package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the travel data service.
// Metrics are organized by subsystem: collection tasks, the external workflow
// API, parsing, records, and the review queue. All counters and histograms are
// registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// TasksStarted counts the total number of collection tasks initiated.
	TasksStarted prometheus.Counter

	// TasksCompleted counts the total number of tasks that finished successfully.
	TasksCompleted prometheus.Counter

	// TasksFailed counts the total number of tasks that ended in failure.
	TasksFailed prometheus.Counter

	// TaskDuration observes the end-to-end duration of collection runs in seconds.
	TaskDuration prometheus.Histogram

	// WorkflowCallsTotal counts outbound workflow API calls, labeled by outcome.
	WorkflowCallsTotal *prometheus.CounterVec

	// WorkflowCallDuration observes workflow API call duration in seconds.
	WorkflowCallDuration prometheus.Histogram

	// WorkflowRetries counts inter-attempt retries of the workflow runner.
	WorkflowRetries prometheus.Counter

	// WorkflowRateLimited counts calls delayed by the client-side rate limiter.
	WorkflowRateLimited prometheus.Counter

	// ParseResults counts parse outcomes, labeled by result ("ok", "repaired", "error").
	ParseResults *prometheus.CounterVec

	// RecordsParsed counts records produced by the parser.
	RecordsParsed prometheus.Counter

	// RecordsSaved counts records committed to destination tables, labeled by data type.
	RecordsSaved *prometheus.CounterVec

	// RecordsPerTask observes the distribution of record counts per collection run.
	RecordsPerTask prometheus.Histogram

	// ReviewsSubmitted counts review items created, labeled by data type.
	ReviewsSubmitted *prometheus.CounterVec

	// ReviewsDecided counts review decisions, labeled by action.
	ReviewsDecided *prometheus.CounterVec

	// EventsPublished counts lifecycle events published to Kafka, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts lifecycle events that could not be published.
	EventsFailed prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Collection tasks
		TasksStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_started_total",
			Help:      "Total number of collection tasks started",
		}),
		TasksCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of collection tasks completed successfully",
		}),
		TasksFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_failed_total",
			Help:      "Total number of collection tasks that failed",
		}),
		TaskDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of collection runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}),

		// External workflow API
		WorkflowCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_calls_total",
			Help:      "Total number of external workflow API calls by outcome",
		}, []string{"outcome"}),
		WorkflowCallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_call_duration_seconds",
			Help:      "Duration of external workflow API calls in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		WorkflowRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_retries_total",
			Help:      "Total number of workflow runner retry attempts",
		}),
		WorkflowRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_rate_limited_total",
			Help:      "Total number of workflow calls delayed by the client rate limiter",
		}),

		// Parsing
		ParseResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_results_total",
			Help:      "Total number of parse operations by result",
		}, []string{"result"}),
		RecordsParsed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Total number of records produced by the content parser",
		}),

		// Records
		RecordsSaved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_saved_total",
			Help:      "Total number of records committed to destination tables by data type",
		}, []string{"data_type"}),
		RecordsPerTask: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "records_per_task",
			Help:      "Number of records parsed per collection run",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		// Review queue
		ReviewsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_submitted_total",
			Help:      "Total number of review items submitted by data type",
		}, []string{"data_type"}),
		ReviewsDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_decided_total",
			Help:      "Total number of review decisions by action",
		}, []string{"action"}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of lifecycle events published by event type",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of lifecycle events that failed to publish",
		}),
	}
}

// RecordTaskStarted records that a collection task has started.
func (m *Metrics) RecordTaskStarted() {
	m.TasksStarted.Inc()
}

// RecordTaskCompleted records that a collection task has completed.
func (m *Metrics) RecordTaskCompleted(durationSeconds float64) {
	m.TasksCompleted.Inc()
	m.TaskDuration.Observe(durationSeconds)
}

// RecordTaskFailed records that a collection task has failed.
func (m *Metrics) RecordTaskFailed(durationSeconds float64) {
	m.TasksFailed.Inc()
	m.TaskDuration.Observe(durationSeconds)
}

// RecordWorkflowCall records an external workflow API call.
func (m *Metrics) RecordWorkflowCall(outcome string, durationSeconds float64) {
	m.WorkflowCallsTotal.WithLabelValues(outcome).Inc()
	m.WorkflowCallDuration.Observe(durationSeconds)
}

// RecordWorkflowRetry records a workflow runner retry.
func (m *Metrics) RecordWorkflowRetry() {
	m.WorkflowRetries.Inc()
}

// RecordWorkflowRateLimited records a call delayed by the rate limiter.
func (m *Metrics) RecordWorkflowRateLimited() {
	m.WorkflowRateLimited.Inc()
}

// RecordParseResult records the outcome of a parse operation.
func (m *Metrics) RecordParseResult(result string, recordCount int) {
	m.ParseResults.WithLabelValues(result).Inc()
	m.RecordsParsed.Add(float64(recordCount))
	m.RecordsPerTask.Observe(float64(recordCount))
}

// RecordRecordSaved records a record committed to its destination table.
func (m *Metrics) RecordRecordSaved(dataType string) {
	m.RecordsSaved.WithLabelValues(dataType).Inc()
}

// RecordReviewSubmitted records a review item entering the queue.
func (m *Metrics) RecordReviewSubmitted(dataType string) {
	m.ReviewsSubmitted.WithLabelValues(dataType).Inc()
}

// RecordReviewDecided records an operator decision.
func (m *Metrics) RecordReviewDecided(action string) {
	m.ReviewsDecided.WithLabelValues(action).Inc()
}

// RecordEventPublished records a lifecycle event published to Kafka.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a publish failure.
func (m *Metrics) RecordEventFailed() {
	m.EventsFailed.Inc()
}
