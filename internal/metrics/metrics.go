// Package metrics provides the centralized Prometheus registry for the
// odds-pattern prediction pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	SchedulerTicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "scheduler_ticks_total",
		Help:      "Total number of scheduler job ticks, by job name and outcome",
	}, []string{"job", "outcome"})

	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "upstream_requests_total",
		Help:      "Total number of upstream HTTP requests, by endpoint and status class",
	}, []string{"endpoint", "status_class"})

	UpstreamRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "upstream_retries_total",
		Help:      "Total number of retried upstream requests",
	})

	NormalizationErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "normalization_errors_total",
		Help:      "Total number of events skipped for normalization errors",
	})

	MatcherVerdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "matcher_verdicts_total",
		Help:      "Total number of matcher verdicts, by status",
	}, []string{"status"})

	ResultsWrittenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "results_written_total",
		Help:      "Total number of Result rows written",
	})

	TimestampCorrectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "timestamp_corrections_total",
		Help:      "Total number of start_time corrections applied",
	})

	NotificationsSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "notifications_sent_total",
		Help:      "Total number of Telegram notifications delivered",
	})

	NotificationsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dropwatch",
		Name:      "notifications_dropped_total",
		Help:      "Total number of notifications dropped after exhausting retries",
	})
)

// Gauge metrics
var (
	AlertViewStale = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dropwatch",
		Name:      "alert_view_stale",
		Help:      "1 if the alert-eligible materialized view is stale, 0 otherwise",
	})

	EventsInPreStartWindow = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dropwatch",
		Name:      "events_in_pre_start_window",
		Help:      "Number of events currently within the pre-start window",
	})
)

// Histogram metrics
var (
	MatcherEvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dropwatch",
		Name:      "matcher_evaluation_duration_seconds",
		Help:      "Duration of one matcher evaluation",
		Buckets:   prometheus.DefBuckets,
	})

	SchedulerJobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dropwatch",
		Name:      "scheduler_job_duration_seconds",
		Help:      "Duration of one scheduler job run, by job name",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"job"})
)

// InitRegistry initializes the global Prometheus registry, registering
// every metric exactly once regardless of how many times it is called.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(SchedulerTicksTotal)
		registry.MustRegister(UpstreamRequestsTotal)
		registry.MustRegister(UpstreamRetriesTotal)
		registry.MustRegister(NormalizationErrorsTotal)
		registry.MustRegister(MatcherVerdictsTotal)
		registry.MustRegister(ResultsWrittenTotal)
		registry.MustRegister(TimestampCorrectionsTotal)
		registry.MustRegister(NotificationsSentTotal)
		registry.MustRegister(NotificationsDroppedTotal)

		registry.MustRegister(AlertViewStale)
		registry.MustRegister(EventsInPreStartWindow)

		registry.MustRegister(MatcherEvaluationDuration)
		registry.MustRegister(SchedulerJobDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry, initializing it on
// first use.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordSchedulerTick records one job tick's outcome.
func RecordSchedulerTick(job, outcome string) {
	SchedulerTicksTotal.WithLabelValues(job, outcome).Inc()
}

// RecordUpstreamRequest records one upstream HTTP call's outcome.
func RecordUpstreamRequest(endpoint, statusClass string) {
	UpstreamRequestsTotal.WithLabelValues(endpoint, statusClass).Inc()
}

// RecordUpstreamRetry records a retried upstream request.
func RecordUpstreamRetry() {
	UpstreamRetriesTotal.Inc()
}

// RecordNormalizationError records a normalization failure.
func RecordNormalizationError() {
	NormalizationErrorsTotal.Inc()
}

// RecordMatcherVerdict records one matcher verdict's status.
func RecordMatcherVerdict(status string) {
	MatcherVerdictsTotal.WithLabelValues(status).Inc()
}

// RecordResultWritten records a successful Result write.
func RecordResultWritten() {
	ResultsWrittenTotal.Inc()
}

// RecordTimestampCorrection records an applied start_time correction.
func RecordTimestampCorrection() {
	TimestampCorrectionsTotal.Inc()
}

// RecordNotificationSent records a delivered notification.
func RecordNotificationSent() {
	NotificationsSentTotal.Inc()
}

// RecordNotificationDropped records a notification dropped after
// exhausting retries.
func RecordNotificationDropped() {
	NotificationsDroppedTotal.Inc()
}

// SetAlertViewStale updates the alert-view staleness gauge.
func SetAlertViewStale(stale bool) {
	if stale {
		AlertViewStale.Set(1)
		return
	}
	AlertViewStale.Set(0)
}

// SetEventsInPreStartWindow updates the pre-start window gauge.
func SetEventsInPreStartWindow(count int) {
	EventsInPreStartWindow.Set(float64(count))
}

// RecordMatcherEvaluationDuration observes a matcher evaluation's wall time.
func RecordMatcherEvaluationDuration(durationSeconds float64) {
	MatcherEvaluationDuration.Observe(durationSeconds)
}

// RecordSchedulerJobDuration observes a scheduler job run's wall time.
func RecordSchedulerJobDuration(job string, durationSeconds float64) {
	SchedulerJobDuration.WithLabelValues(job).Observe(durationSeconds)
}
