package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vertextoedge/snapshot-archive-cache/internal/adapter/filesystem"
	"github.com/vertextoedge/snapshot-archive-cache/internal/port"
)

// countingFS counts directory scans per directory
type countingFS struct {
	*filesystem.Manager

	mu    sync.Mutex
	scans map[string]int
}

func newCountingFS(t *testing.T, root string) *countingFS {
	t.Helper()
	m, err := filesystem.NewManager(root)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return &countingFS{Manager: m, scans: make(map[string]int)}
}

func (c *countingFS) ReadDir(dir string) ([]port.FileInfo, error) {
	c.mu.Lock()
	c.scans[dir]++
	c.mu.Unlock()
	return c.Manager.ReadDir(dir)
}

func (c *countingFS) scanCount(dir string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scans[dir]
}

type fakeSubscription struct {
	path string
	opts port.WatchOptions

	mu     sync.Mutex
	closed bool
	events chan port.WatchEvent
}

func (s *fakeSubscription) Events() <-chan port.WatchEvent {
	return s.events
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Emit delivers an event unless the subscription is closed
func (s *fakeSubscription) Emit(kind port.EventKind, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- port.WatchEvent{Kind: kind, Path: path}
	}
}

func (s *fakeSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeWatchService records every subscription it hands out
type fakeWatchService struct {
	mu   sync.Mutex
	subs []*fakeSubscription
	err  error
}

func (w *fakeWatchService) Subscribe(path string, opts port.WatchOptions) (port.Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	sub := &fakeSubscription{
		path:   path,
		opts:   opts,
		events: make(chan port.WatchEvent, 16),
	}
	w.subs = append(w.subs, sub)
	return sub, nil
}

// latest returns the most recent subscription for path
func (w *fakeWatchService) latest(path string) *fakeSubscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := len(w.subs) - 1; i >= 0; i-- {
		if w.subs[i].path == path {
			return w.subs[i]
		}
	}
	return nil
}

func (w *fakeWatchService) open() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, s := range w.subs {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeResizer returns a blob naming its inputs
type fakeResizer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeResizer) Resize(_ context.Context, sourcePath string, width, quality int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte(fmt.Sprintf("%s@%d/q%d", filepath.Base(sourcePath), width, quality)), nil
}

func (r *fakeResizer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

var errResize = errors.New("decode failed")

func mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	dir := filepath.Join(parts...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	return dir
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

// eventually polls cond until it holds or the deadline passes
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
