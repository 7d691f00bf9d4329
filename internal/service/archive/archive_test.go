package archive

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/vertextoedge/snapshot-archive-cache/internal/adapter/watch"
	"github.com/vertextoedge/snapshot-archive-cache/internal/domain"
	"go.uber.org/zap"
)

func newTestArchive(t *testing.T, root string) (*Archive, *countingFS, *fakeResizer) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dates.SettleDelay = 20 * time.Millisecond
	cfg.Partitions.SettleDelay = 20 * time.Millisecond
	cfg.Timelapse.SettleDelay = 20 * time.Millisecond
	cfg.MaxThumbnailWidth = 800

	fs := newCountingFS(t, root)
	resizer := &fakeResizer{}
	a := New(cfg, fs, watch.NewService(zap.NewNop()), resizer, zap.NewNop())
	t.Cleanup(a.Dispose)
	return a, fs, resizer
}

func TestArchive_ListDates(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "snapshots", "20250101")
	mkdir(t, root, "snapshots", "20250102")
	mkdir(t, root, "snapshots", "misc")

	a, fs, _ := newTestArchive(t, root)

	want := []string{"20250102", "20250101"}
	if got := dateCodes(a.ListDates()); !reflect.DeepEqual(got, want) {
		t.Errorf("ListDates() = %v, want %v", got, want)
	}

	// A new partition is picked up through the watcher without a rescan
	mkdir(t, root, "snapshots", "20250103")
	eventually(t, 5*time.Second, func() bool {
		return reflect.DeepEqual(dateCodes(a.ListDates()), []string{"20250103", "20250102", "20250101"})
	}, "new date partition listed")

	if got := fs.scanCount(fs.SnapshotsDir()); got != 1 {
		t.Errorf("scans = %d, want 1", got)
	}
}

func TestArchive_ListForDateInvalidatesOnChange(t *testing.T) {
	root := t.TempDir()
	seedPartition(t, root, "20250101", "080000")

	a, fs, _ := newTestArchive(t, root)

	files, err := a.ListForDate("20250101")
	if err != nil {
		t.Fatalf("ListForDate() error = %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("ListForDate() = %v, want 1 file", files)
	}

	seedPartition(t, root, "20250101", "090000")
	eventually(t, 5*time.Second, func() bool {
		files, _ := a.ListForDate("20250101")
		return len(files) == 2
	}, "new snapshot listed after invalidation")

	if got := fs.scanCount(fs.PartitionDir("20250101")); got < 2 {
		t.Errorf("scans = %d, want at least 2", got)
	}
}

func TestArchive_ListTimelapseFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "timelapse", "timelapse_20250101.mp4"), 64)

	a, fs, _ := newTestArchive(t, root)

	if got := a.ListTimelapseFiles(); len(got) != 1 || got[0].FileSizeBytes != 64 {
		t.Fatalf("ListTimelapseFiles() = %+v", got)
	}

	writeFile(t, filepath.Join(root, "timelapse", "timelapse_20250102.mp4"), 128)
	eventually(t, 5*time.Second, func() bool {
		files := a.ListTimelapseFiles()
		return len(files) == 2 && files[0].File == "timelapse_20250102.mp4" && files[0].FileSizeBytes == 128
	}, "new timelapse file patched in")

	if got := fs.scanCount(fs.TimelapseDir()); got != 1 {
		t.Errorf("scans = %d, want 1", got)
	}
}

func TestArchive_GetThumbnail(t *testing.T) {
	root := t.TempDir()
	seedPartition(t, root, "20250101", "080000")

	a, _, resizer := newTestArchive(t, root)
	ctx := context.Background()
	rel := "snapshots/20250101/snapshot_20250101080000.jpg"

	blob, err := a.GetThumbnail(ctx, rel, 400)
	if err != nil {
		t.Fatalf("GetThumbnail() error = %v", err)
	}
	if len(blob) == 0 {
		t.Error("GetThumbnail() returned empty blob")
	}

	tests := []struct {
		name  string
		path  string
		width int
		want  error
	}{
		{"width zero", rel, 0, domain.ErrInvalidInput},
		{"width above max", rel, 801, domain.ErrInvalidInput},
		{"escape root", "../outside.jpg", 400, domain.ErrOutsideArchive},
		{"empty path", "", 400, domain.ErrInvalidInput},
		{"missing file", "snapshots/20250101/snapshot_20250101235959.jpg", 400, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.GetThumbnail(ctx, tt.path, tt.width); !errors.Is(err, tt.want) {
				t.Errorf("GetThumbnail() error = %v, want %v", err, tt.want)
			}
		})
	}

	if got := resizer.callCount(); got != 1 {
		t.Errorf("resize calls = %d, want 1", got)
	}
}

func TestArchive_Stats(t *testing.T) {
	root := t.TempDir()
	seedPartition(t, root, "20250101", "080000", "090000")
	writeFile(t, filepath.Join(root, "timelapse", "timelapse_20250101.mp4"), 1)

	a, _, _ := newTestArchive(t, root)
	a.ListForDate("20250101")
	a.GetThumbnail(context.Background(), "snapshots/20250101/snapshot_20250101080000.jpg", 100)

	s := a.Stats()
	if !s.Dates.Initialized || !s.Dates.Watching || s.Dates.Entries != 1 {
		t.Errorf("Dates = %+v", s.Dates)
	}
	if !s.Timelapse.Initialized || s.Timelapse.Entries != 1 {
		t.Errorf("Timelapse = %+v", s.Timelapse)
	}
	if s.Partitions.Entries != 1 || s.Partitions.Watchers != 1 {
		t.Errorf("Partitions = %+v", s.Partitions)
	}
	if s.ThumbnailEntries != 1 {
		t.Errorf("ThumbnailEntries = %d, want 1", s.ThumbnailEntries)
	}
}

func TestArchive_DisposeIdempotent(t *testing.T) {
	root := t.TempDir()
	seedPartition(t, root, "20250101", "080000")
	mkdir(t, root, "timelapse")

	a, _, _ := newTestArchive(t, root)
	a.ListForDate("20250101")

	a.Dispose()
	a.Dispose()

	s := a.Stats()
	if s.Dates.Watching || s.Timelapse.Watching || s.Partitions.Watchers != 0 {
		t.Errorf("watchers still open after Dispose: %+v", s)
	}
	if _, err := a.ListForDate("20250101"); !errors.Is(err, domain.ErrDisposed) {
		t.Errorf("ListForDate() after Dispose error = %v, want ErrDisposed", err)
	}
	if _, err := a.GetThumbnail(context.Background(), "snapshots/20250101/snapshot_20250101080000.jpg", 100); !errors.Is(err, domain.ErrDisposed) {
		t.Errorf("GetThumbnail() after Dispose error = %v, want ErrDisposed", err)
	}
}
