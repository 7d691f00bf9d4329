package server

import (
	"context"
	"net/http"
	"time"

	"github.com/vertextoedge/snapshot-archive-cache/internal/metrics"
	"go.uber.org/zap"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "0.0.0.0:8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server represents the HTTP API server
type Server struct {
	config         *Config
	logger         *zap.Logger
	server         *http.Server
	archiveHandler *ArchiveHandler
	debugHandler   *DebugHandler
}

// New creates a new HTTP server. disk may be nil.
func New(cfg *Config, archive Archive, disk DiskUsageProvider, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config: cfg,
		logger: logger,
	}

	s.archiveHandler = NewArchiveHandler(archive, logger)
	s.debugHandler = NewDebugHandler(archive, disk, logger)

	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      LoggingMiddleware(logger)(s.routes()),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus
	mux.Handle("/metrics", metrics.Handler())

	// Archive endpoints
	mux.HandleFunc("/api/dates", s.archiveHandler.HandleDates)
	mux.HandleFunc("/api/dates/", s.archiveHandler.HandleDateSnapshots)
	mux.HandleFunc("/api/timelapse", s.archiveHandler.HandleTimelapse)
	mux.HandleFunc("/api/thumbnails", s.archiveHandler.HandleThumbnail)

	// Debug endpoints
	mux.HandleFunc("/debug/stats", s.debugHandler.HandleStats)

	return mux
}

// Handler returns the root handler including middleware
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}, s.logger)
}
