//go:build !windows
// +build !windows

package filesystem

import (
	"fmt"
	"syscall"
)

// GetDiskUsage returns disk usage for the archive root
func (m *Manager) GetDiskUsage() (*DiskUsage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(m.rootDir, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk stats: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return newDiskUsage(total, free), nil
}
