package archive

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/vertextoedge/snapshot-archive-cache/internal/domain"
	"github.com/vertextoedge/snapshot-archive-cache/internal/metrics"
	"github.com/vertextoedge/snapshot-archive-cache/internal/port"
	"go.uber.org/zap"
)

// TimelapseIndex caches the flat timelapse directory listing. Added or
// rewritten files are upserted with the size observed at event time.
type TimelapseIndex struct {
	list    *watchedList[domain.TimelapseFile]
	sweeper *sweeper
}

// NewTimelapseIndex creates a TimelapseIndex and performs the initial scan
func NewTimelapseIndex(cfg IndexConfig, fs port.ArchiveFS, watch port.WatchService, logger *zap.Logger) *TimelapseIndex {
	return newTimelapseIndex(cfg, fs, watch, logger, time.Now)
}

func newTimelapseIndex(cfg IndexConfig, fs port.ArchiveFS, watch port.WatchService, logger *zap.Logger, now func() time.Time) *TimelapseIndex {
	cfg.applyDefaults()
	dir := fs.TimelapseDir()

	list := &watchedList[domain.TimelapseFile]{
		name:       metrics.CacheTimelapse,
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
		scan: func() ([]domain.TimelapseFile, error) {
			return scanTimelapse(fs, dir)
		},
	}
	list.patch = func(files []domain.TimelapseFile, ev port.WatchEvent) ([]domain.TimelapseFile, bool) {
		return patchTimelapse(fs, logger, files, ev)
	}

	t := &TimelapseIndex{list: list}
	list.load()
	t.sweeper = startSweeper(cfg.SweepInterval, t.Sweep)
	return t
}

// ListFiles returns the timelapse files, most recent first
func (t *TimelapseIndex) ListFiles() []domain.TimelapseFile {
	return t.list.get()
}

// Sweep drops the listing and closes the watcher if it has been idle too long
func (t *TimelapseIndex) Sweep() {
	t.list.sweep()
}

// Dispose stops the sweep timer and closes the watcher
func (t *TimelapseIndex) Dispose() {
	t.sweeper.Stop()
	t.list.dispose()
}

func scanTimelapse(fs port.ArchiveFS, dir string) ([]domain.TimelapseFile, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]domain.TimelapseFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		if f, ok := domain.ParseTimelapseFile(e.Name, e.Size); ok {
			files = append(files, f)
		}
	}
	domain.SortTimelapseFiles(files)
	return files, nil
}

func patchTimelapse(fs port.ArchiveFS, logger *zap.Logger, files []domain.TimelapseFile, ev port.WatchEvent) ([]domain.TimelapseFile, bool) {
	name := filepath.Base(ev.Path)
	if !domain.IsTimelapseFile(name) {
		return files, false
	}

	idx := -1
	for i, f := range files {
		if f.File == name {
			idx = i
			break
		}
	}

	switch ev.Kind {
	case port.FileAdded, port.Changed:
		info, err := fs.Stat(ev.Path)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) && idx >= 0 {
				// Gone again before we could stat it
				return append(files[:idx], files[idx+1:]...), true
			}
			logger.Warn("failed to stat timelapse file",
				zap.String("path", ev.Path),
				zap.Error(err))
			return files, false
		}

		f, _ := domain.ParseTimelapseFile(name, info.Size)
		if idx >= 0 {
			if files[idx] == f {
				return files, false
			}
			files[idx] = f
			return files, true
		}
		files = append(files, f)
		domain.SortTimelapseFiles(files)
		return files, true
	case port.FileRemoved:
		if idx < 0 {
			return files, false
		}
		return append(files[:idx], files[idx+1:]...), true
	default:
		return files, false
	}
}
