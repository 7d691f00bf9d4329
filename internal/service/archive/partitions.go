package archive

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/vertextoedge/snapshot-archive-cache/internal/domain"
	"github.com/vertextoedge/snapshot-archive-cache/internal/metrics"
	"github.com/vertextoedge/snapshot-archive-cache/internal/port"
	"go.uber.org/zap"
)

// PartitionIndexConfig contains settings for the per-partition content index
type PartitionIndexConfig struct {
	// IdleExpiry applies separately to cached listings and to watchers
	IdleExpiry time.Duration

	// SweepInterval is how often idle listings and watchers are checked
	SweepInterval time.Duration

	// MaxWatchers caps the number of partition watchers open at once
	MaxWatchers int

	// SettleDelay is passed to the watch service
	SettleDelay time.Duration
}

// DefaultPartitionIndexConfig returns default partition index configuration
func DefaultPartitionIndexConfig() PartitionIndexConfig {
	return PartitionIndexConfig{
		IdleExpiry:    30 * time.Minute,
		SweepInterval: time.Minute,
		MaxWatchers:   10,
		SettleDelay:   2 * time.Second,
	}
}

// PartitionStats is a point-in-time view of the partition index
type PartitionStats struct {
	Entries  int `json:"entries"`
	Watchers int `json:"watchers"`
}

type partitionEntry struct {
	files          []domain.SnapshotFile
	lastAccessedAt time.Time
}

type partitionWatch struct {
	dateCode     string
	sub          port.Subscription
	seq          uint64
	registeredAt time.Time
	lastUsedAt   time.Time
}

// PartitionIndex caches snapshot listings per date partition. Each cached
// partition gets a watcher from a bounded pool; any snapshot change in the
// partition drops its listing instead of patching it.
type PartitionIndex struct {
	cfg    PartitionIndexConfig
	fs     port.ArchiveFS
	watch  port.WatchService
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	disposed bool
	entries  map[string]*partitionEntry
	watchers map[string]*partitionWatch
	nextSeq  uint64

	sweeper *sweeper
}

// NewPartitionIndex creates an empty PartitionIndex; partitions are scanned on first access
func NewPartitionIndex(cfg PartitionIndexConfig, fs port.ArchiveFS, watch port.WatchService, logger *zap.Logger) *PartitionIndex {
	return newPartitionIndex(cfg, fs, watch, logger, time.Now)
}

func newPartitionIndex(cfg PartitionIndexConfig, fs port.ArchiveFS, watch port.WatchService, logger *zap.Logger, now func() time.Time) *PartitionIndex {
	if cfg.IdleExpiry <= 0 {
		cfg.IdleExpiry = 30 * time.Minute
	}
	if cfg.MaxWatchers <= 0 {
		cfg.MaxWatchers = 10
	}

	p := &PartitionIndex{
		cfg:      cfg,
		fs:       fs,
		watch:    watch,
		logger:   logger,
		now:      now,
		entries:  make(map[string]*partitionEntry),
		watchers: make(map[string]*partitionWatch),
	}
	p.sweeper = startSweeper(cfg.SweepInterval, p.Sweep)
	return p
}

// ListForDate returns the snapshots in a partition, most recent first
func (p *PartitionIndex) ListForDate(dateCode string) ([]domain.SnapshotFile, error) {
	if !domain.IsDateCode(dateCode) {
		return nil, fmt.Errorf("date code %q: %w", dateCode, domain.ErrInvalidInput)
	}

	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil, domain.ErrDisposed
	}
	if entry, ok := p.entries[dateCode]; ok {
		now := p.now()
		entry.lastAccessedAt = now
		if w, ok := p.watchers[dateCode]; ok {
			w.lastUsedAt = now
		}
		files := cloneItems(entry.files)
		p.mu.Unlock()
		metrics.RecordHit(metrics.CachePartitions)
		return files, nil
	}
	p.mu.Unlock()

	metrics.RecordMiss(metrics.CachePartitions)

	dir := p.fs.PartitionDir(dateCode)
	files, err := scanPartition(p.fs, dir)
	metrics.RecordScan(metrics.CachePartitions, err)
	if err != nil {
		p.logger.Warn("partition scan failed, serving empty listing",
			zap.String("date", dateCode),
			zap.String("dir", dir),
			zap.Error(err))
		return []domain.SnapshotFile{}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return nil, domain.ErrDisposed
	}

	now := p.now()
	entry, ok := p.entries[dateCode]
	if !ok {
		entry = &partitionEntry{files: files}
		p.entries[dateCode] = entry
		p.logger.Debug("partition cached",
			zap.String("date", dateCode),
			zap.Int("files", len(files)))
	}
	entry.lastAccessedAt = now

	if _, watching := p.watchers[dateCode]; !watching {
		p.registerLocked(dateCode, dir, now)
	}
	return cloneItems(entry.files), nil
}

// registerLocked opens a watcher for the partition, evicting the oldest
// registrations first when the pool is full
func (p *PartitionIndex) registerLocked(dateCode, dir string, now time.Time) {
	if size := len(p.watchers); size >= p.cfg.MaxWatchers {
		p.evictOldestLocked(size - p.cfg.MaxWatchers + 1)
	}

	sub, err := p.watch.Subscribe(dir, port.WatchOptions{
		Recursive:    false,
		IgnoreHidden: true,
		SettleDelay:  p.cfg.SettleDelay,
	})
	if err != nil {
		metrics.RecordWatcherError(metrics.CachePartitions)
		p.logger.Warn("failed to watch partition, serving listing without invalidation",
			zap.String("date", dateCode),
			zap.String("dir", dir),
			zap.Error(err))
		return
	}

	p.nextSeq++
	w := &partitionWatch{
		dateCode:     dateCode,
		sub:          sub,
		seq:          p.nextSeq,
		registeredAt: now,
		lastUsedAt:   now,
	}
	p.watchers[dateCode] = w
	metrics.WatcherOpened(metrics.CachePartitions)
	go p.consume(w)
}

// evictOldestLocked closes the n watchers with the oldest registration.
// Their listings are dropped too since nothing guards them any more.
func (p *PartitionIndex) evictOldestLocked(n int) {
	pool := make([]*partitionWatch, 0, len(p.watchers))
	for _, w := range p.watchers {
		pool = append(pool, w)
	}
	slices.SortFunc(pool, func(a, b *partitionWatch) int {
		if c := a.registeredAt.Compare(b.registeredAt); c != 0 {
			return c
		}
		return int(a.seq) - int(b.seq)
	})

	for _, w := range pool[:min(n, len(pool))] {
		p.closeWatchLocked(w)
		if _, ok := p.entries[w.dateCode]; ok {
			delete(p.entries, w.dateCode)
			metrics.RecordInvalidation(metrics.CachePartitions, metrics.ReasonEvicted)
		}
		p.logger.Debug("partition watcher evicted",
			zap.String("date", w.dateCode),
			zap.Time("registered_at", w.registeredAt))
	}
}

func (p *PartitionIndex) consume(w *partitionWatch) {
	for ev := range w.sub.Events() {
		p.handleEvent(w, ev)
	}
}

func (p *PartitionIndex) handleEvent(w *partitionWatch, ev port.WatchEvent) {
	if !domain.IsSnapshotFile(filepath.Base(ev.Path)) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watchers[w.dateCode] != w {
		return
	}
	p.closeWatchLocked(w)
	delete(p.entries, w.dateCode)
	metrics.RecordInvalidation(metrics.CachePartitions, metrics.ReasonChange)
	p.logger.Debug("partition invalidated",
		zap.String("date", w.dateCode),
		zap.String("kind", ev.Kind.String()),
		zap.String("path", ev.Path))
}

func (p *PartitionIndex) closeWatchLocked(w *partitionWatch) {
	delete(p.watchers, w.dateCode)
	if err := w.sub.Close(); err != nil {
		p.logger.Warn("failed to close partition watcher",
			zap.String("date", w.dateCode),
			zap.Error(err))
	}
	metrics.WatcherClosed(metrics.CachePartitions)
}

// Sweep drops listings and watchers that have not been used within IdleExpiry.
// Listings and watchers are checked against their own timestamps.
func (p *PartitionIndex) Sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return
	}
	now := p.now()

	for date, entry := range p.entries {
		if now.Sub(entry.lastAccessedAt) <= p.cfg.IdleExpiry {
			continue
		}
		delete(p.entries, date)
		if w, ok := p.watchers[date]; ok {
			p.closeWatchLocked(w)
		}
		metrics.RecordInvalidation(metrics.CachePartitions, metrics.ReasonIdle)
		p.logger.Debug("idle partition expired", zap.String("date", date))
	}

	for date, w := range p.watchers {
		if now.Sub(w.lastUsedAt) <= p.cfg.IdleExpiry {
			continue
		}
		p.closeWatchLocked(w)
		p.logger.Debug("idle partition watcher closed", zap.String("date", date))
	}
}

// Stats returns the number of cached partitions and open watchers
func (p *PartitionIndex) Stats() PartitionStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PartitionStats{Entries: len(p.entries), Watchers: len(p.watchers)}
}

// Dispose stops the sweep timer and closes every partition watcher
func (p *PartitionIndex) Dispose() {
	p.sweeper.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return
	}
	p.disposed = true
	for _, w := range p.watchers {
		p.closeWatchLocked(w)
	}
	clear(p.entries)
}

func scanPartition(fs port.ArchiveFS, dir string) ([]domain.SnapshotFile, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]domain.SnapshotFile, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir && domain.IsSnapshotFile(e.Name) {
			files = append(files, domain.SnapshotFile{File: e.Name})
		}
	}
	domain.SortSnapshotFiles(files)
	return files, nil
}
