package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ninjapivot = "ninjapivot"

	// Job metrics
	jobsCreatedTotal   = "jobs_created_total"
	jobsCompletedTotal = "jobs_completed_total"
	jobsFailedTotal    = "jobs_failed_total"
	jobsActive         = "jobs_active"
	jobDurationSeconds = "job_duration_seconds"
	artifactBytes      = "artifact_bytes"

	// Labels
	failureKindLabel = "kind"
)

var jobsCreatedTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: ninjapivot,
		Name:      jobsCreatedTotal,
		Help:      "number of report jobs accepted by the ingestion gateway",
	},
)

var jobsCompletedTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: ninjapivot,
		Name:      jobsCompletedTotal,
		Help:      "number of report jobs that reached the complete state",
	},
)

var jobsFailedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: ninjapivot,
		Name:      jobsFailedTotal,
		Help:      "number of report jobs that reached the failed state, by failure kind",
	},
	[]string{failureKindLabel},
)

var jobsActiveMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: ninjapivot,
		Name:      jobsActive,
		Help:      "number of jobs currently owned by a running analysis runner",
	},
)

var jobDurationSecondsMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Subsystem: ninjapivot,
		Name:      jobDurationSeconds,
		Help:      "wall clock duration of report jobs from creation to terminal state",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300},
	},
)

var artifactBytesMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Subsystem: ninjapivot,
		Name:      artifactBytes,
		Help:      "size in bytes of generated report artifacts",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
	},
)

func IncreaseJobsCreated() {
	jobsCreatedTotalMetric.Inc()
}

func IncreaseJobsCompleted() {
	jobsCompletedTotalMetric.Inc()
}

func IncreaseJobsFailed(kind string) {
	jobsFailedTotalMetric.With(prometheus.Labels{failureKindLabel: kind}).Inc()
}

func IncreaseActiveJobs() {
	jobsActiveMetric.Inc()
}

func DecreaseActiveJobs() {
	jobsActiveMetric.Dec()
}

func ObserveJobDuration(seconds float64) {
	jobDurationSecondsMetric.Observe(seconds)
}

func ObserveArtifactSize(bytes int) {
	artifactBytesMetric.Observe(float64(bytes))
}

// PrometheusMetricsHandler serves the default registry over HTTP.
type PrometheusMetricsHandler struct{}

func NewPrometheusMetricsHandler() *PrometheusMetricsHandler {
	return &PrometheusMetricsHandler{}
}

func (p *PrometheusMetricsHandler) Handler() http.Handler {
	return promhttp.Handler()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(
		jobsCreatedTotalMetric,
		jobsCompletedTotalMetric,
		jobsFailedTotalMetric,
		jobsActiveMetric,
		jobDurationSecondsMetric,
		artifactBytesMetric,
	)
}
