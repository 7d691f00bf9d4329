package port

import (
	"time"
)

// FileInfo describes one directory entry of the archive
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// ArchiveFS defines the filesystem operations the archive caches depend on
type ArchiveFS interface {
	// RootDir returns the archive root directory
	RootDir() string

	// SnapshotsDir returns the directory holding the date partitions
	SnapshotsDir() string

	// TimelapseDir returns the flat timelapse directory
	TimelapseDir() string

	// PartitionDir returns the directory of one date partition
	PartitionDir(dateCode string) string

	// Resolve maps a root-relative path to an absolute path inside the archive.
	// Returns domain.ErrOutsideArchive if the path escapes the root.
	Resolve(relPath string) (string, error)

	// ReadDir lists the entries of a directory, hidden entries excluded
	ReadDir(dir string) ([]FileInfo, error)

	// Stat returns information about a single path.
	// Returns domain.ErrNotFound if the path does not exist.
	Stat(path string) (FileInfo, error)
}
