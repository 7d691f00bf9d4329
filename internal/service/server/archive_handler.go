package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/vertextoedge/snapshot-archive-cache/internal/domain"
	"github.com/vertextoedge/snapshot-archive-cache/internal/service/archive"
	"go.uber.org/zap"
)

// Archive is the cache facade served over HTTP
type Archive interface {
	ListDates() []domain.DatePartition
	ListForDate(dateCode string) ([]domain.SnapshotFile, error)
	ListTimelapseFiles() []domain.TimelapseFile
	GetThumbnail(ctx context.Context, relPath string, width int) ([]byte, error)
	Stats() archive.Stats
}

// ArchiveHandler handles archive listing and thumbnail requests
type ArchiveHandler struct {
	archive Archive
	logger  *zap.Logger
}

// NewArchiveHandler creates a new ArchiveHandler
func NewArchiveHandler(a Archive, logger *zap.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archive: a,
		logger:  logger,
	}
}

// HandleDates handles /api/dates
func (h *ArchiveHandler) HandleDates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.archive.ListDates(), h.logger)
}

// HandleDateSnapshots handles /api/dates/{date}/snapshots
func (h *ArchiveHandler) HandleDateSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/dates/")
	date, rest, _ := strings.Cut(path, "/")
	if date == "" || rest != "snapshots" {
		http.NotFound(w, r)
		return
	}

	files, err := h.archive.ListForDate(date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files, h.logger)
}

// HandleTimelapse handles /api/timelapse
func (h *ArchiveHandler) HandleTimelapse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.archive.ListTimelapseFiles(), h.logger)
}

// HandleThumbnail handles /api/thumbnails?path={rel}&width={n}
func (h *ArchiveHandler) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	relPath := r.URL.Query().Get("path")
	width, err := strconv.Atoi(r.URL.Query().Get("width"))
	if err != nil {
		http.Error(w, "width must be an integer", http.StatusBadRequest)
		return
	}

	blob, err := h.archive.GetThumbnail(r.Context(), relPath, width)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(blob); err != nil {
		h.logger.Debug("failed to write thumbnail", zap.String("path", relPath), zap.Error(err))
	}
}

// writeError maps archive errors to HTTP status codes
func (h *ArchiveHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrOutsideArchive):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDisposed):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("archive request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()}, h.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to encode response", zap.Error(err))
	}
}
