package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHitMiss(t *testing.T) {
	hits := testutil.ToFloat64(cacheRequestsTotal.WithLabelValues(CacheDates, "hit"))
	misses := testutil.ToFloat64(cacheRequestsTotal.WithLabelValues(CacheDates, "miss"))

	RecordHit(CacheDates)
	RecordHit(CacheDates)
	RecordMiss(CacheDates)

	if got := testutil.ToFloat64(cacheRequestsTotal.WithLabelValues(CacheDates, "hit")); got != hits+2 {
		t.Errorf("hits = %v, want %v", got, hits+2)
	}
	if got := testutil.ToFloat64(cacheRequestsTotal.WithLabelValues(CacheDates, "miss")); got != misses+1 {
		t.Errorf("misses = %v, want %v", got, misses+1)
	}
}

func TestRecordScan(t *testing.T) {
	scans := testutil.ToFloat64(directoryScansTotal.WithLabelValues(CacheTimelapse))
	failures := testutil.ToFloat64(scanErrorsTotal.WithLabelValues(CacheTimelapse))

	RecordScan(CacheTimelapse, nil)
	RecordScan(CacheTimelapse, errors.New("permission denied"))

	if got := testutil.ToFloat64(directoryScansTotal.WithLabelValues(CacheTimelapse)); got != scans+2 {
		t.Errorf("scans = %v, want %v", got, scans+2)
	}
	if got := testutil.ToFloat64(scanErrorsTotal.WithLabelValues(CacheTimelapse)); got != failures+1 {
		t.Errorf("scan errors = %v, want %v", got, failures+1)
	}
}

func TestWatcherGauge(t *testing.T) {
	before := testutil.ToFloat64(watchersActive.WithLabelValues(CachePartitions))

	WatcherOpened(CachePartitions)
	WatcherOpened(CachePartitions)
	WatcherClosed(CachePartitions)

	if got := testutil.ToFloat64(watchersActive.WithLabelValues(CachePartitions)); got != before+1 {
		t.Errorf("watchers = %v, want %v", got, before+1)
	}
}

func TestThumbnailMetrics(t *testing.T) {
	SetThumbnailEntries(42)
	if got := testutil.ToFloat64(thumbnailEntries); got != 42 {
		t.Errorf("thumbnail entries = %v, want 42", got)
	}

	before := testutil.ToFloat64(thumbnailEvictionsTotal.WithLabelValues("capacity"))
	RecordThumbnailEvictions("capacity", 3)
	RecordThumbnailEvictions("capacity", 0)
	if got := testutil.ToFloat64(thumbnailEvictionsTotal.WithLabelValues("capacity")); got != before+3 {
		t.Errorf("evictions = %v, want %v", got, before+3)
	}

	errs := testutil.ToFloat64(resizeErrorsTotal)
	RecordResize(10*time.Millisecond, nil)
	RecordResize(10*time.Millisecond, errors.New("decode"))
	if got := testutil.ToFloat64(resizeErrorsTotal); got != errs+1 {
		t.Errorf("resize errors = %v, want %v", got, errs+1)
	}
}

func TestHandler(t *testing.T) {
	RecordPatch(CacheDates)
	RecordInvalidation(CachePartitions, ReasonChange)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"archive_cache_patches_total", "archive_cache_invalidations_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
