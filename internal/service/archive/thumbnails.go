package archive

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vertextoedge/snapshot-archive-cache/internal/domain"
	"github.com/vertextoedge/snapshot-archive-cache/internal/metrics"
	"github.com/vertextoedge/snapshot-archive-cache/internal/port"
	"go.uber.org/zap"
)

// ThumbnailConfig contains settings for the thumbnail cache
type ThumbnailConfig struct {
	// Capacity is the entry count above which recency eviction starts
	Capacity int

	// MaxAge is the absolute lifetime of an entry since insertion
	MaxAge time.Duration

	// Quality is the JPEG quality passed to the resizer
	Quality int

	// SweepInterval is how often expired entries are purged without an insert
	SweepInterval time.Duration
}

// DefaultThumbnailConfig returns default thumbnail cache configuration
func DefaultThumbnailConfig() ThumbnailConfig {
	return ThumbnailConfig{
		Capacity:      500,
		MaxAge:        time.Hour,
		Quality:       80,
		SweepInterval: 5 * time.Minute,
	}
}

type thumbnailEntry struct {
	blob           []byte
	addedAt        time.Time
	lastAccessedAt time.Time
}

// ThumbnailCache keeps resized images keyed by source path, width and source
// modification time. Returned blobs are shared and must not be modified.
type ThumbnailCache struct {
	cfg     ThumbnailConfig
	fs      port.ArchiveFS
	resizer port.Resizer
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	disposed bool
	entries  map[string]*thumbnailEntry

	sweeper *sweeper
}

// NewThumbnailCache creates an empty ThumbnailCache
func NewThumbnailCache(cfg ThumbnailConfig, fs port.ArchiveFS, resizer port.Resizer, logger *zap.Logger) *ThumbnailCache {
	return newThumbnailCache(cfg, fs, resizer, logger, time.Now)
}

func newThumbnailCache(cfg ThumbnailConfig, fs port.ArchiveFS, resizer port.Resizer, logger *zap.Logger, now func() time.Time) *ThumbnailCache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 500
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 80
	}

	c := &ThumbnailCache{
		cfg:     cfg,
		fs:      fs,
		resizer: resizer,
		logger:  logger,
		now:     now,
		entries: make(map[string]*thumbnailEntry),
	}
	c.sweeper = startSweeper(cfg.SweepInterval, c.Sweep)
	return c
}

// Get returns the thumbnail of sourcePath at width, resizing on a miss.
// Concurrent misses for the same key each resize; the last insert wins.
func (c *ThumbnailCache) Get(ctx context.Context, sourcePath string, width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("width %d: %w", width, domain.ErrInvalidInput)
	}

	info, err := c.fs.Stat(sourcePath)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		return nil, fmt.Errorf("%s is a directory: %w", sourcePath, domain.ErrNotFound)
	}
	key := domain.Fingerprint(sourcePath, width, info.ModTime)

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil, domain.ErrDisposed
	}
	if entry, ok := c.entries[key]; ok {
		entry.lastAccessedAt = c.now()
		blob := entry.blob
		c.mu.Unlock()
		metrics.RecordHit(metrics.CacheThumbnails)
		return blob, nil
	}
	c.mu.Unlock()

	metrics.RecordMiss(metrics.CacheThumbnails)

	start := time.Now()
	blob, err := c.resizer.Resize(ctx, sourcePath, width, c.cfg.Quality)
	metrics.RecordResize(time.Since(start), err)
	if err != nil {
		c.logger.Warn("thumbnail resize failed",
			zap.String("source", sourcePath),
			zap.Int("width", width),
			zap.Error(err))
		return nil, domain.NewResizeError(sourcePath, width, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return blob, nil
	}
	now := c.now()
	c.entries[key] = &thumbnailEntry{
		blob:           blob,
		addedAt:        now,
		lastAccessedAt: now,
	}
	c.cleanupLocked(now)
	metrics.SetThumbnailEntries(len(c.entries))
	return blob, nil
}

// cleanupLocked removes aged entries and, above capacity, trims the least
// recently accessed entries until 90% of capacity remains
func (c *ThumbnailCache) cleanupLocked(now time.Time) {
	n := len(c.entries)
	if n <= c.cfg.Capacity {
		if removed := c.purgeExpiredLocked(now); removed > 0 {
			metrics.RecordThumbnailEvictions(metrics.ReasonExpired, removed)
		}
		return
	}

	keys := make([]string, 0, n)
	for k := range c.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return c.entries[a].lastAccessedAt.Compare(c.entries[b].lastAccessedAt)
	})

	remove := make(map[string]struct{})
	for _, k := range keys {
		if c.expired(c.entries[k], now) {
			remove[k] = struct{}{}
		}
	}
	expired := len(remove)

	additional := 0
	if n-expired > c.cfg.Capacity {
		additional = n - expired - c.cfg.Capacity*9/10
	}
	evicted := 0
	for _, k := range keys {
		if evicted >= additional {
			break
		}
		if _, ok := remove[k]; ok {
			continue
		}
		remove[k] = struct{}{}
		evicted++
	}

	for k := range remove {
		delete(c.entries, k)
	}

	if expired > 0 {
		metrics.RecordThumbnailEvictions(metrics.ReasonExpired, expired)
	}
	if evicted > 0 {
		metrics.RecordThumbnailEvictions(metrics.ReasonEvicted, evicted)
	}
	c.logger.Debug("thumbnail cache trimmed",
		zap.Int("before", n),
		zap.Int("expired", expired),
		zap.Int("evicted", evicted),
		zap.Int("after", len(c.entries)))
}

func (c *ThumbnailCache) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for k, entry := range c.entries {
		if c.expired(entry, now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *ThumbnailCache) expired(entry *thumbnailEntry, now time.Time) bool {
	return now.Sub(entry.addedAt) > c.cfg.MaxAge
}

// Sweep removes entries older than MaxAge
func (c *ThumbnailCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	if removed := c.purgeExpiredLocked(c.now()); removed > 0 {
		metrics.RecordThumbnailEvictions(metrics.ReasonExpired, removed)
		metrics.SetThumbnailEntries(len(c.entries))
		c.logger.Debug("expired thumbnails purged", zap.Int("removed", removed))
	}
}

// Len returns the number of cached thumbnails
func (c *ThumbnailCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Dispose stops the purge timer and drops all entries
func (c *ThumbnailCache) Dispose() {
	c.sweeper.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.disposed = true
	clear(c.entries)
	metrics.SetThumbnailEntries(0)
}
