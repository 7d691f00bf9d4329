package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vertextoedge/snapshot-archive-cache/internal/domain"
	"github.com/vertextoedge/snapshot-archive-cache/internal/port"
)

// Manager handles read access to the snapshot archive on local disk
type Manager struct {
	rootDir      string
	snapshotsDir string
	timelapseDir string
}

// Ensure Manager implements port.ArchiveFS
var _ port.ArchiveFS = (*Manager)(nil)

// NewManager creates a new archive filesystem manager with the default layout
func NewManager(rootDir string) (*Manager, error) {
	return NewManagerWithLayout(rootDir, "snapshots", "timelapse")
}

// NewManagerWithLayout creates a new archive filesystem manager with custom
// snapshot and timelapse subdirectory names
func NewManagerWithLayout(rootDir, snapshotsDir, timelapseDir string) (*Manager, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive root: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("archive root is not a directory: %s", abs)
	}

	if snapshotsDir == "" {
		snapshotsDir = "snapshots"
	}
	if timelapseDir == "" {
		timelapseDir = "timelapse"
	}

	return &Manager{
		rootDir:      abs,
		snapshotsDir: filepath.Join(abs, snapshotsDir),
		timelapseDir: filepath.Join(abs, timelapseDir),
	}, nil
}

// RootDir returns the archive root directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// SnapshotsDir returns the directory holding the date partitions
func (m *Manager) SnapshotsDir() string {
	return m.snapshotsDir
}

// TimelapseDir returns the flat timelapse directory
func (m *Manager) TimelapseDir() string {
	return m.timelapseDir
}

// PartitionDir returns the directory of one date partition
func (m *Manager) PartitionDir(dateCode string) string {
	return filepath.Join(m.snapshotsDir, dateCode)
}

// Resolve maps a root-relative path to an absolute path inside the archive
func (m *Manager) Resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("%w: empty path", domain.ErrInvalidInput)
	}

	cleaned := filepath.Clean(filepath.Join(m.rootDir, filepath.FromSlash(relPath)))
	if cleaned != m.rootDir && !strings.HasPrefix(cleaned, m.rootDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", domain.ErrOutsideArchive, relPath)
	}
	return cleaned, nil
}

// ReadDir lists the entries of a directory, hidden entries excluded
func (m *Manager) ReadDir(dir string) ([]port.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read dir: %w", err)
	}

	result := make([]port.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Entry vanished between listing and stat
			continue
		}
		result = append(result, toFileInfo(info))
	}
	return result, nil
}

// Stat returns information about a single path
func (m *Manager) Stat(path string) (port.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return port.FileInfo{}, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return port.FileInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	return toFileInfo(info), nil
}

func toFileInfo(info fs.FileInfo) port.FileInfo {
	return port.FileInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
}
