// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	entriesTotal             *prometheus.CounterVec
	fetchesTotal             *prometheus.CounterVec
	fetchBytesTotal          *prometheus.CounterVec
	ocrTotal                 *prometheus.CounterVec
	mentionsTotal            *prometheus.CounterVec
	resolutionsTotal         *prometheus.CounterVec
	stageDurationSeconds     *prometheus.HistogramVec
	activeWorkers            prometheus.Gauge
	rateLimitDelaysSeconds   *prometheus.HistogramVec
	watchdogChecksTotal      *prometheus.CounterVec
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDurationSecs  *prometheus.HistogramVec
	snapshotsArchivedTotal   *prometheus.CounterVec
	softCapExceededTotal     prometheus.Counter
	statusEventsDroppedTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		entriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_entries_total",
				Help: "Queue entries processed, labeled by outcome (completed, retried, failed).",
			},
			[]string{"outcome"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetches_total",
				Help: "Fetches performed, labeled by site, mode and status.",
			},
			[]string{"site", "mode", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetch_bytes_total",
				Help: "Bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		ocrTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_ocr_total",
				Help: "Text extractions, labeled by winning service and document type.",
			},
			[]string{"service", "document_type"},
		)

		mentionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_mentions_total",
				Help: "Classified mentions, labeled by role and whether they were rejected.",
			},
			[]string{"role", "rejected"},
		)

		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_resolutions_total",
				Help: "Identity resolutions, labeled by action.",
			},
			[]string{"action"},
		)

		stageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_stage_duration_seconds",
				Help:    "Pipeline stage latencies.",
				Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 15, 60, 180, 600},
			},
			[]string{"stage"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_workers",
				Help: "Number of workers currently processing an entry.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		watchdogChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_watchdog_checks_total",
				Help: "Archive verifications, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		snapshotsArchivedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_snapshots_archived_total",
				Help: "Snapshots written to the archive store, labeled by category.",
			},
			[]string{"category"},
		)

		softCapExceededTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_soft_cap_exceeded_total",
				Help: "Entries that ran past the per-URL soft cap.",
			},
		)

		statusEventsDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_status_events_dropped_total",
				Help: "Status events dropped because the hub buffer was full.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEntry counts a processed queue entry.
func ObserveEntry(outcome string) {
	Init()
	entriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch counts a fetch and the bytes it returned.
func ObserveFetch(rawURL, mode, status string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchesTotal.WithLabelValues(site, mode, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveOCR counts a text extraction.
func ObserveOCR(service, documentType string) {
	Init()
	ocrTotal.WithLabelValues(service, documentType).Inc()
}

// ObserveMention counts a classified mention.
func ObserveMention(role string, rejected bool) {
	Init()
	mentionsTotal.WithLabelValues(role, strconv.FormatBool(rejected)).Inc()
}

// ObserveResolution counts an identity resolution.
func ObserveResolution(action string) {
	Init()
	resolutionsTotal.WithLabelValues(action).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	Init()
	stageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveWatchdogCheck counts an archive verification.
func ObserveWatchdogCheck(outcome string) {
	Init()
	watchdogChecksTotal.WithLabelValues(outcome).Inc()
}

// ObserveSnapshot counts an archived snapshot.
func ObserveSnapshot(category string) {
	Init()
	snapshotsArchivedTotal.WithLabelValues(category).Inc()
}

// ObserveSoftCapExceeded counts an entry that overran the soft cap.
func ObserveSoftCapExceeded() {
	Init()
	softCapExceededTotal.Inc()
}

// ObserveDroppedStatusEvent counts a status event the hub could not buffer.
func ObserveDroppedStatusEvent() {
	Init()
	statusEventsDroppedTotal.Inc()
}

// ObserveHTTPRequest records an ops API request.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecs.WithLabelValues(method, route).Observe(d.Seconds())
}
