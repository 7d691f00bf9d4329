package server

import (
	"net/http"

	"github.com/vertextoedge/snapshot-archive-cache/internal/adapter/filesystem"
	"go.uber.org/zap"
)

// DiskUsageProvider reports usage of the archive volume
type DiskUsageProvider interface {
	GetDiskUsage() (*filesystem.DiskUsage, error)
}

// DebugHandler handles debug endpoint requests
type DebugHandler struct {
	archive Archive
	disk    DiskUsageProvider
	logger  *zap.Logger
}

// NewDebugHandler creates a new DebugHandler
func NewDebugHandler(archive Archive, disk DiskUsageProvider, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		archive: archive,
		disk:    disk,
		logger:  logger,
	}
}

// HandleStats handles debug statistics requests
func (h *DebugHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"caches": h.archive.Stats(),
	}

	if h.disk != nil {
		usage, err := h.disk.GetDiskUsage()
		if err != nil {
			h.logger.Warn("failed to get disk usage", zap.Error(err))
		} else {
			response["disk"] = usage
		}
	}

	writeJSON(w, http.StatusOK, response, h.logger)
}
