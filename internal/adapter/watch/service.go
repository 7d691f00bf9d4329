// Package watch implements port.WatchService on top of fsnotify.
//
// Raw fsnotify operations are coalesced per path: every operation restarts a
// settle timer, and only when the timer fires is the path stat'ed and a
// single classified event (added, removed or changed) emitted. Partially
// written files therefore surface once, after writes have stopped for the
// configured settle delay.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vertextoedge/snapshot-archive-cache/internal/port"
	"github.com/vertextoedge/snapshot-archive-cache/internal/util/ratelimiter"
	"go.uber.org/zap"
)

const (
	eventBufferSize = 64

	// errorLogInterval bounds how often runtime watcher errors are logged
	errorLogInterval = 30 * time.Second
)

// Service opens fsnotify-backed subscriptions
type Service struct {
	logger *zap.Logger
}

// Ensure Service implements port.WatchService
var _ port.WatchService = (*Service)(nil)

// NewService creates a new watch Service
func NewService(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Subscribe starts watching path
func (s *Service) Subscribe(path string, opts port.WatchOptions) (port.Subscription, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	sub := &subscription{
		root:    path,
		opts:    opts,
		watcher: w,
		logger:  s.logger.With(zap.String("watch_path", path)),
		events:  make(chan port.WatchEvent, eventBufferSize),
		done:    make(chan struct{}),
		known:   make(map[string]bool),
		timers:  make(map[string]*settleTimer),
		errLog:  ratelimiter.New(errorLogInterval),
	}

	if err := sub.addDir(path); err != nil {
		w.Close()
		return nil, err
	}

	sub.loopWG.Add(1)
	go sub.loop()

	return sub, nil
}

type settleTimer struct {
	timer *time.Timer
}

// subscription tracks which entries it has seen so that removals can be
// classified as file or directory after the entry is gone.
type subscription struct {
	root    string
	opts    port.WatchOptions
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	errLog  *ratelimiter.Limiter

	events chan port.WatchEvent
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	known  map[string]bool // path -> isDir
	timers map[string]*settleTimer

	loopWG sync.WaitGroup
	sendWG sync.WaitGroup
}

// Events returns the event channel
func (s *subscription) Events() <-chan port.WatchEvent {
	return s.events
}

// Close stops the watcher and closes the event channel
func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for path, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, path)
	}
	s.mu.Unlock()

	close(s.done)
	err := s.watcher.Close()
	s.loopWG.Wait()
	s.sendWG.Wait()
	close(s.events)

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// addDir registers dir with fsnotify and records its current entries
func (s *subscription) addDir(dir string) error {
	if err := s.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read watched dir: %w", err)
	}

	var subdirs []string
	s.mu.Lock()
	for _, entry := range entries {
		if s.ignored(entry.Name()) {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		s.known[p] = entry.IsDir()
		if entry.IsDir() {
			subdirs = append(subdirs, p)
		}
	}
	s.mu.Unlock()

	if s.opts.Recursive {
		for _, sub := range subdirs {
			if err := s.addDir(sub); err != nil {
				s.logger.Warn("failed to watch subdirectory",
					zap.String("path", sub),
					zap.Error(err))
			}
		}
	}
	return nil
}

func (s *subscription) ignored(name string) bool {
	return s.opts.IgnoreHidden && strings.HasPrefix(name, ".")
}

func (s *subscription) loop() {
	defer s.loopWG.Done()

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.schedule(ev.Name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if ok, suppressed := s.errLog.Allow(); ok {
				s.logger.Warn("watcher error",
					zap.Error(err),
					zap.Int("suppressed", suppressed))
			}
		}
	}
}

// schedule (re)starts the settle timer for path
func (s *subscription) schedule(path string) {
	if s.ignored(filepath.Base(path)) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if t, ok := s.timers[path]; ok && t.timer.Stop() {
		t.timer.Reset(s.opts.SettleDelay)
		return
	}

	t := &settleTimer{}
	t.timer = time.AfterFunc(s.opts.SettleDelay, func() {
		s.settle(path, t)
	})
	s.timers[path] = t
}

// settle classifies the current state of path and emits one event
func (s *subscription) settle(path string, t *settleTimer) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.timers[path] == t {
		delete(s.timers, path)
	}

	wasDir, wasKnown := s.known[path]
	info, statErr := os.Stat(path)

	var ev port.WatchEvent
	var watchNewDir bool
	switch {
	case statErr == nil:
		isDir := info.IsDir()
		s.known[path] = isDir
		switch {
		case !wasKnown && isDir:
			ev = port.WatchEvent{Kind: port.DirAdded, Path: path}
			watchNewDir = s.opts.Recursive
		case !wasKnown:
			ev = port.WatchEvent{Kind: port.FileAdded, Path: path}
		case !isDir:
			ev = port.WatchEvent{Kind: port.Changed, Path: path}
		default:
			// Directory metadata change
			s.mu.Unlock()
			return
		}
	case wasKnown:
		delete(s.known, path)
		if wasDir {
			ev = port.WatchEvent{Kind: port.DirRemoved, Path: path}
		} else {
			ev = port.WatchEvent{Kind: port.FileRemoved, Path: path}
		}
	default:
		// Created and removed within one settle window
		s.mu.Unlock()
		return
	}

	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	if watchNewDir {
		if err := s.addDir(path); err != nil {
			s.logger.Warn("failed to watch new subdirectory",
				zap.String("path", path),
				zap.Error(err))
		}
	}

	s.logger.Debug("filesystem change settled",
		zap.String("kind", ev.Kind.String()),
		zap.String("path", ev.Path))

	select {
	case s.events <- ev:
	case <-s.done:
	}
}
