// Package metrics provides Prometheus metrics for the archive caches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache names used as label values
const (
	CacheDates      = "dates"
	CachePartitions = "partitions"
	CacheTimelapse  = "timelapse"
	CacheThumbnails = "thumbnails"
)

// Invalidation reasons used as label values
const (
	ReasonChange  = "change"
	ReasonIdle    = "idle"
	ReasonEvicted = "evicted"
	ReasonExpired = "expired"
)

var (
	// Index cache metrics
	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_cache_requests_total",
			Help: "Total cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	directoryScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_directory_scans_total",
			Help: "Total directory scans performed on cache miss",
		},
		[]string{"cache"},
	)

	scanErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_scan_errors_total",
			Help: "Total directory scans that failed and were served as empty",
		},
		[]string{"cache"},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_cache_invalidations_total",
			Help: "Total cached listings dropped by reason",
		},
		[]string{"cache", "reason"},
	)

	patchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_cache_patches_total",
			Help: "Total incremental patches applied from watch events",
		},
		[]string{"cache"},
	)

	// Watcher metrics
	watchersActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "archive_watchers_active",
			Help: "Number of open filesystem watchers",
		},
		[]string{"cache"},
	)

	watcherErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_watcher_setup_errors_total",
			Help: "Total watcher setups that failed",
		},
		[]string{"cache"},
	)

	// Thumbnail metrics
	thumbnailEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archive_thumbnail_entries",
			Help: "Number of thumbnails held in memory",
		},
	)

	thumbnailEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_thumbnail_evictions_total",
			Help: "Total thumbnails evicted by reason",
		},
		[]string{"reason"},
	)

	resizeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archive_thumbnail_resize_duration_seconds",
			Help:    "Time spent rendering a thumbnail on cache miss",
			Buckets: prometheus.DefBuckets,
		},
	)

	resizeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_thumbnail_resize_errors_total",
			Help: "Total failed thumbnail renders",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHit records a cache hit.
func RecordHit(cache string) {
	cacheRequestsTotal.WithLabelValues(cache, "hit").Inc()
}

// RecordMiss records a cache miss.
func RecordMiss(cache string) {
	cacheRequestsTotal.WithLabelValues(cache, "miss").Inc()
}

// RecordScan records a directory scan and whether it failed.
func RecordScan(cache string, err error) {
	directoryScansTotal.WithLabelValues(cache).Inc()
	if err != nil {
		scanErrorsTotal.WithLabelValues(cache).Inc()
	}
}

// RecordInvalidation records a dropped listing.
func RecordInvalidation(cache, reason string) {
	invalidationsTotal.WithLabelValues(cache, reason).Inc()
}

// RecordPatch records an incremental patch.
func RecordPatch(cache string) {
	patchesTotal.WithLabelValues(cache).Inc()
}

// WatcherOpened increments the open watcher gauge.
func WatcherOpened(cache string) {
	watchersActive.WithLabelValues(cache).Inc()
}

// WatcherClosed decrements the open watcher gauge.
func WatcherClosed(cache string) {
	watchersActive.WithLabelValues(cache).Dec()
}

// RecordWatcherError records a failed watcher setup.
func RecordWatcherError(cache string) {
	watcherErrorsTotal.WithLabelValues(cache).Inc()
}

// SetThumbnailEntries sets the current thumbnail count.
func SetThumbnailEntries(n int) {
	thumbnailEntries.Set(float64(n))
}

// RecordThumbnailEvictions records evicted thumbnails.
func RecordThumbnailEvictions(reason string, n int) {
	if n > 0 {
		thumbnailEvictionsTotal.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordResize records a thumbnail render.
func RecordResize(duration time.Duration, err error) {
	resizeDuration.Observe(duration.Seconds())
	if err != nil {
		resizeErrorsTotal.Inc()
	}
}
