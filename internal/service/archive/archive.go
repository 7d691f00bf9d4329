// Package archive provides the in-memory caches in front of the snapshot
// archive: date listings, per-date snapshot listings, timelapse listings and
// thumbnails. Listings are kept current by filesystem watchers and torn down
// after a period without reads.
package archive

import (
	"context"
	"fmt"
	"sync"

	"github.com/vertextoedge/snapshot-archive-cache/internal/domain"
	"github.com/vertextoedge/snapshot-archive-cache/internal/port"
	"go.uber.org/zap"
)

// Config contains settings for all archive caches
type Config struct {
	Dates      IndexConfig
	Partitions PartitionIndexConfig
	Timelapse  IndexConfig
	Thumbnails ThumbnailConfig

	// MaxThumbnailWidth bounds the width accepted by GetThumbnail
	MaxThumbnailWidth int
}

// DefaultConfig returns default archive configuration
func DefaultConfig() Config {
	return Config{
		Dates:             DefaultIndexConfig(),
		Partitions:        DefaultPartitionIndexConfig(),
		Timelapse:         DefaultIndexConfig(),
		Thumbnails:        DefaultThumbnailConfig(),
		MaxThumbnailWidth: 1920,
	}
}

// Stats is a point-in-time view of all caches
type Stats struct {
	Dates            ListingStats   `json:"dates"`
	Partitions       PartitionStats `json:"partitions"`
	Timelapse        ListingStats   `json:"timelapse"`
	ThumbnailEntries int            `json:"thumbnailEntries"`
}

// ListingStats describes a single watched listing
type ListingStats struct {
	Initialized bool `json:"initialized"`
	Watching    bool `json:"watching"`
	Entries     int  `json:"entries"`
}

// Archive composes the archive caches behind one API
type Archive struct {
	fs       port.ArchiveFS
	maxWidth int
	logger   *zap.Logger

	dates      *DateIndex
	partitions *PartitionIndex
	timelapse  *TimelapseIndex
	thumbnails *ThumbnailCache

	disposeOnce sync.Once
}

// New creates an Archive. The date and timelapse listings are scanned and
// watched immediately.
func New(cfg Config, fs port.ArchiveFS, watch port.WatchService, resizer port.Resizer, logger *zap.Logger) *Archive {
	if cfg.MaxThumbnailWidth <= 0 {
		cfg.MaxThumbnailWidth = 1920
	}

	a := &Archive{
		fs:         fs,
		maxWidth:   cfg.MaxThumbnailWidth,
		logger:     logger,
		dates:      NewDateIndex(cfg.Dates, fs, watch, logger.Named("dates")),
		partitions: NewPartitionIndex(cfg.Partitions, fs, watch, logger.Named("partitions")),
		timelapse:  NewTimelapseIndex(cfg.Timelapse, fs, watch, logger.Named("timelapse")),
		thumbnails: NewThumbnailCache(cfg.Thumbnails, fs, resizer, logger.Named("thumbnails")),
	}

	logger.Info("archive caches started",
		zap.String("root", fs.RootDir()),
		zap.Int("max_watchers", cfg.Partitions.MaxWatchers),
		zap.Int("thumbnail_capacity", cfg.Thumbnails.Capacity))
	return a
}

// ListDates returns the date partitions, most recent first
func (a *Archive) ListDates() []domain.DatePartition {
	return a.dates.ListDates()
}

// ListForDate returns the snapshots of one date, most recent first
func (a *Archive) ListForDate(dateCode string) ([]domain.SnapshotFile, error) {
	return a.partitions.ListForDate(dateCode)
}

// ListTimelapseFiles returns the timelapse files, most recent first
func (a *Archive) ListTimelapseFiles() []domain.TimelapseFile {
	return a.timelapse.ListFiles()
}

// GetThumbnail returns a resized JPEG of the archive file at relPath
func (a *Archive) GetThumbnail(ctx context.Context, relPath string, width int) ([]byte, error) {
	if width <= 0 || width > a.maxWidth {
		return nil, fmt.Errorf("width must be between 1 and %d: %w", a.maxWidth, domain.ErrInvalidInput)
	}

	sourcePath, err := a.fs.Resolve(relPath)
	if err != nil {
		return nil, err
	}
	return a.thumbnails.Get(ctx, sourcePath, width)
}

// Stats returns a snapshot of cache sizes and watcher state
func (a *Archive) Stats() Stats {
	var s Stats
	s.Dates.Initialized, s.Dates.Watching, s.Dates.Entries = a.dates.list.status()
	s.Timelapse.Initialized, s.Timelapse.Watching, s.Timelapse.Entries = a.timelapse.list.status()
	s.Partitions = a.partitions.Stats()
	s.ThumbnailEntries = a.thumbnails.Len()
	return s
}

// Dispose closes every watcher and stops every sweep timer. Safe to call twice.
func (a *Archive) Dispose() {
	a.disposeOnce.Do(func() {
		a.dates.Dispose()
		a.partitions.Dispose()
		a.timelapse.Dispose()
		a.thumbnails.Dispose()
		a.logger.Info("archive caches disposed")
	})
}
