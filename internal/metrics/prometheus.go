package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all feed metrics.
type Registry struct {
	// Publishing
	PublishedVersion  prometheus.Gauge
	PublishedAt       prometheus.Gauge
	FeedEntries       *prometheus.GaugeVec
	FeedLines         prometheus.Gauge
	Submissions       *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	SideEffectFailure *prometheus.CounterVec

	// History
	HistoryVersions prometheus.Gauge
	PrunedVersions  prometheus.Counter

	// Serving
	FeedRequests *prometheus.CounterVec
	APIRequests  *prometheus.CounterVec
	APILatency   *prometheus.HistogramVec

	// System
	Uptime prometheus.Gauge
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.PublishedVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ipfeed_published_version",
		Help: "Version of the currently published feed",
	})

	r.PublishedAt = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ipfeed_published_timestamp_seconds",
		Help: "Unix time the current feed was published",
	})

	r.FeedEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ipfeed_entries",
		Help: "Number of entries in the published snapshot",
	}, []string{"family"})

	r.FeedLines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ipfeed_document_lines",
		Help: "Number of address lines in the published document",
	})

	r.Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipfeed_submissions_total",
		Help: "Edit submissions by operation and result",
	}, []string{"operation", "result"})

	r.PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ipfeed_pipeline_duration_seconds",
		Help:    "Time from submission to publish",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	r.SideEffectFailure = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipfeed_side_effect_failures_total",
		Help: "Post-publish notification or audit failures",
	}, []string{"kind"})

	r.HistoryVersions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ipfeed_history_versions",
		Help: "Number of retained snapshot versions",
	})

	r.PrunedVersions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ipfeed_pruned_versions_total",
		Help: "Snapshot versions removed by retention",
	})

	r.FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipfeed_feed_requests_total",
		Help: "Feed document requests by response status",
	}, []string{"status"})

	r.APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipfeed_api_requests_total",
		Help: "Total API requests",
	}, []string{"method", "path", "status"})

	r.APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ipfeed_api_request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	r.Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ipfeed_uptime_seconds",
		Help: "Process uptime in seconds",
	})

	return r
}

// RecordPublish records a successful publish.
func (r *Registry) RecordPublish(version uint64, v4, v6, lines int, at time.Time) {
	r.PublishedVersion.Set(float64(version))
	r.PublishedAt.Set(float64(at.Unix()))
	r.FeedEntries.WithLabelValues("ipv4").Set(float64(v4))
	r.FeedEntries.WithLabelValues("ipv6").Set(float64(v6))
	r.FeedLines.Set(float64(lines))
}

// RecordSubmission records the outcome of one pipeline run.
func (r *Registry) RecordSubmission(operation, result string, duration time.Duration) {
	r.Submissions.WithLabelValues(operation, result).Inc()
	if result == "published" {
		r.PipelineDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordSideEffectFailure counts a failed notification or audit write.
func (r *Registry) RecordSideEffectFailure(kind string) {
	r.SideEffectFailure.WithLabelValues(kind).Inc()
}

// RecordFeedRequest records a feed document request.
func (r *Registry) RecordFeedRequest(status int) {
	r.FeedRequests.WithLabelValues(statusString(status)).Inc()
}

// RecordAPIRequest records an API request.
func (r *Registry) RecordAPIRequest(method, path string, status int, duration float64) {
	r.APIRequests.WithLabelValues(method, path, statusString(status)).Inc()
	r.APILatency.WithLabelValues(method, path).Observe(duration)
}

// statusString converts an HTTP status code to string.
func statusString(status int) string {
	return strconv.Itoa(status)
}
