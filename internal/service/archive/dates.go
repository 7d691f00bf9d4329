package archive

import (
	"path/filepath"
	"time"

	"github.com/vertextoedge/snapshot-archive-cache/internal/domain"
	"github.com/vertextoedge/snapshot-archive-cache/internal/metrics"
	"github.com/vertextoedge/snapshot-archive-cache/internal/port"
	"go.uber.org/zap"
)

// IndexConfig contains settings shared by the directory and timelapse indexes
type IndexConfig struct {
	// IdleExpiry is how long a listing survives without reads
	IdleExpiry time.Duration

	// SweepInterval is how often idle listings are checked
	SweepInterval time.Duration

	// SettleDelay is passed to the watch service
	SettleDelay time.Duration
}

// DefaultIndexConfig returns default index configuration
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		IdleExpiry:    30 * time.Minute,
		SweepInterval: time.Minute,
		SettleDelay:   2 * time.Second,
	}
}

func (c *IndexConfig) applyDefaults() {
	if c.IdleExpiry <= 0 {
		c.IdleExpiry = 30 * time.Minute
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
}

// DateIndex caches the date partitions under the snapshots directory
type DateIndex struct {
	list    *watchedList[domain.DatePartition]
	sweeper *sweeper
}

// NewDateIndex creates a DateIndex and performs the initial scan
func NewDateIndex(cfg IndexConfig, fs port.ArchiveFS, watch port.WatchService, logger *zap.Logger) *DateIndex {
	return newDateIndex(cfg, fs, watch, logger, time.Now)
}

func newDateIndex(cfg IndexConfig, fs port.ArchiveFS, watch port.WatchService, logger *zap.Logger, now func() time.Time) *DateIndex {
	cfg.applyDefaults()
	dir := fs.SnapshotsDir()

	list := &watchedList[domain.DatePartition]{
		name:       metrics.CacheDates,
		dir:        dir,
		idleExpiry: cfg.IdleExpiry,
		watchOpts: port.WatchOptions{
			Recursive:    false,
			IgnoreHidden: true,
			SettleDelay:  cfg.SettleDelay,
		},
		watch:  watch,
		logger: logger,
		now:    now,
		scan: func() ([]domain.DatePartition, error) {
			return scanDates(fs, dir)
		},
		patch: patchDates,
	}

	d := &DateIndex{list: list}
	list.load()
	d.sweeper = startSweeper(cfg.SweepInterval, d.Sweep)
	return d
}

// ListDates returns the date partitions, most recent first
func (d *DateIndex) ListDates() []domain.DatePartition {
	return d.list.get()
}

// Sweep drops the listing and closes the watcher if it has been idle too long
func (d *DateIndex) Sweep() {
	d.list.sweep()
}

// Dispose stops the sweep timer and closes the watcher
func (d *DateIndex) Dispose() {
	d.sweeper.Stop()
	d.list.dispose()
}

func scanDates(fs port.ArchiveFS, dir string) ([]domain.DatePartition, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	dates := make([]domain.DatePartition, 0, len(entries))
	for _, e := range entries {
		if e.IsDir && domain.IsDateCode(e.Name) {
			dates = append(dates, domain.DatePartition{DateCode: e.Name})
		}
	}
	domain.SortDatePartitions(dates)
	return dates, nil
}

func patchDates(dates []domain.DatePartition, ev port.WatchEvent) ([]domain.DatePartition, bool) {
	name := filepath.Base(ev.Path)
	if !domain.IsDateCode(name) {
		return dates, false
	}

	idx := -1
	for i, d := range dates {
		if d.DateCode == name {
			idx = i
			break
		}
	}

	switch ev.Kind {
	case port.DirAdded:
		if idx >= 0 {
			return dates, false
		}
		dates = append(dates, domain.DatePartition{DateCode: name})
		domain.SortDatePartitions(dates)
		return dates, true
	case port.DirRemoved:
		if idx < 0 {
			return dates, false
		}
		return append(dates[:idx], dates[idx+1:]...), true
	default:
		return dates, false
	}
}
