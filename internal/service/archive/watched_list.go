package archive

import (
	"sync"
	"time"

	"github.com/vertextoedge/snapshot-archive-cache/internal/metrics"
	"github.com/vertextoedge/snapshot-archive-cache/internal/port"
	"go.uber.org/zap"
)

// watchedList is a sorted listing of one directory kept current by a single
// watcher. Events are applied as incremental patches; the listing is never
// rescanned while it stays initialized.
type watchedList[T any] struct {
	name       string
	dir        string
	idleExpiry time.Duration
	watchOpts  port.WatchOptions
	watch      port.WatchService
	logger     *zap.Logger
	now        func() time.Time

	// scan lists the directory from scratch
	scan func() ([]T, error)
	// patch applies one event and reports whether the listing changed
	patch func(items []T, ev port.WatchEvent) ([]T, bool)

	mu          sync.Mutex
	initialized bool
	disposed    bool
	items       []T
	sub         port.Subscription
	lastReadAt  time.Time
}

// get returns a copy of the listing, scanning on first use or after idle expiry
func (l *watchedList[T]) get() []T {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return nil
	}
	if l.initialized {
		l.lastReadAt = l.now()
		items := cloneItems(l.items)
		l.mu.Unlock()
		metrics.RecordHit(l.name)
		return items
	}
	l.mu.Unlock()

	metrics.RecordMiss(l.name)
	return l.load()
}

// load scans the directory and installs the result. Failed scans are served
// as an empty listing but not cached, so the next read scans again.
func (l *watchedList[T]) load() []T {
	items, err := l.scan()
	metrics.RecordScan(l.name, err)
	if err != nil {
		l.logger.Warn("directory scan failed, serving empty listing",
			zap.String("dir", l.dir),
			zap.Error(err))
		return []T{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return items
	}
	if !l.initialized {
		l.items = items
		l.initialized = true
		l.openWatcherLocked()
		l.logger.Debug("listing initialized",
			zap.String("dir", l.dir),
			zap.Int("entries", len(items)))
	}
	l.lastReadAt = l.now()
	return cloneItems(l.items)
}

func (l *watchedList[T]) openWatcherLocked() {
	sub, err := l.watch.Subscribe(l.dir, l.watchOpts)
	if err != nil {
		metrics.RecordWatcherError(l.name)
		l.logger.Warn("failed to watch directory, serving listing without invalidation",
			zap.String("dir", l.dir),
			zap.Error(err))
		return
	}

	l.sub = sub
	metrics.WatcherOpened(l.name)
	go l.consume(sub)
}

func (l *watchedList[T]) consume(sub port.Subscription) {
	for ev := range sub.Events() {
		l.apply(sub, ev)
	}
}

func (l *watchedList[T]) apply(sub port.Subscription, ev port.WatchEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Events from a watcher that has since been replaced or closed
	if l.sub != sub || !l.initialized {
		return
	}

	items, changed := l.patch(l.items, ev)
	if !changed {
		return
	}
	l.items = items
	metrics.RecordPatch(l.name)
	l.logger.Debug("listing patched",
		zap.String("kind", ev.Kind.String()),
		zap.String("path", ev.Path),
		zap.Int("entries", len(items)))
}

// sweep drops the listing and its watcher if nothing read it within idleExpiry
func (l *watchedList[T]) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed || !l.initialized {
		return
	}
	idle := l.now().Sub(l.lastReadAt)
	if idle <= l.idleExpiry {
		return
	}

	l.resetLocked()
	metrics.RecordInvalidation(l.name, metrics.ReasonIdle)
	l.logger.Debug("idle listing expired",
		zap.String("dir", l.dir),
		zap.Duration("idle", idle))
}

// dispose closes the watcher and drops the listing. Safe to call twice.
func (l *watchedList[T]) dispose() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return
	}
	l.disposed = true
	l.resetLocked()
}

func (l *watchedList[T]) resetLocked() {
	if l.sub != nil {
		if err := l.sub.Close(); err != nil {
			l.logger.Warn("failed to close watcher", zap.String("dir", l.dir), zap.Error(err))
		}
		metrics.WatcherClosed(l.name)
		l.sub = nil
	}
	l.items = nil
	l.initialized = false
}

func (l *watchedList[T]) status() (initialized, watching bool, entries int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialized, l.sub != nil, len(l.items)
}

func cloneItems[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
