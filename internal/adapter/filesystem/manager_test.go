package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/vertextoedge/snapshot-archive-cache/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestNewManager_MissingRoot(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("NewManager() error = nil, want error for missing root")
	}
}

func TestManager_Layout(t *testing.T) {
	m := newTestManager(t)

	if got, want := m.SnapshotsDir(), filepath.Join(m.RootDir(), "snapshots"); got != want {
		t.Errorf("SnapshotsDir() = %v, want %v", got, want)
	}
	if got, want := m.TimelapseDir(), filepath.Join(m.RootDir(), "timelapse"); got != want {
		t.Errorf("TimelapseDir() = %v, want %v", got, want)
	}
	if got, want := m.PartitionDir("20250101"), filepath.Join(m.RootDir(), "snapshots", "20250101"); got != want {
		t.Errorf("PartitionDir() = %v, want %v", got, want)
	}
}

func TestManager_Resolve(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name    string
		rel     string
		want    string
		wantErr error
	}{
		{
			name: "nested path",
			rel:  "snapshots/20250101/snapshot_20250101120000.jpg",
			want: filepath.Join(m.RootDir(), "snapshots", "20250101", "snapshot_20250101120000.jpg"),
		},
		{
			name: "dot segments inside root",
			rel:  "snapshots/../timelapse/timelapse_20250101.mp4",
			want: filepath.Join(m.RootDir(), "timelapse", "timelapse_20250101.mp4"),
		},
		{
			name:    "escapes root",
			rel:     "../etc/passwd",
			wantErr: domain.ErrOutsideArchive,
		},
		{
			name:    "empty",
			rel:     "",
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Resolve(tt.rel)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_ReadDir(t *testing.T) {
	m := newTestManager(t)
	dir := m.SnapshotsDir()

	for _, d := range []string{"20250101", "20250102", ".hidden"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := m.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
		if e.Name == "readme.txt" && (e.IsDir || e.Size != 5) {
			t.Errorf("readme.txt info = %+v, want file of size 5", e)
		}
		if e.Name == "20250101" && !e.IsDir {
			t.Errorf("20250101 IsDir = false, want true")
		}
	}
	sort.Strings(names)

	want := []string{"20250101", "20250102", "readme.txt"}
	if len(names) != len(want) {
		t.Fatalf("ReadDir() names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ReadDir() names = %v, want %v", names, want)
			break
		}
	}
}

func TestManager_ReadDirMissing(t *testing.T) {
	m := newTestManager(t)

	_, err := m.ReadDir(m.PartitionDir("19990101"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ReadDir() error = %v, want ErrNotFound", err)
	}
}

func TestManager_Stat(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.RootDir(), "a.jpg")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	info, err := m.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size != 3 || info.IsDir || info.Name != "a.jpg" {
		t.Errorf("Stat() = %+v, want a.jpg file of size 3", info)
	}

	if _, err := m.Stat(filepath.Join(m.RootDir(), "missing.jpg")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Stat() missing error = %v, want ErrNotFound", err)
	}
}

func TestManager_GetDiskUsage(t *testing.T) {
	m := newTestManager(t)

	usage, err := m.GetDiskUsage()
	if err != nil {
		t.Fatalf("GetDiskUsage() error = %v", err)
	}
	if usage.Total == 0 {
		t.Error("GetDiskUsage() Total = 0, want > 0")
	}
	if usage.UsedPct < 0 || usage.UsedPct > 100 {
		t.Errorf("GetDiskUsage() UsedPct = %v, want 0..100", usage.UsedPct)
	}
}
