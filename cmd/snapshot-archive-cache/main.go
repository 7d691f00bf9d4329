package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vertextoedge/snapshot-archive-cache/internal/adapter/filesystem"
	"github.com/vertextoedge/snapshot-archive-cache/internal/adapter/resize"
	"github.com/vertextoedge/snapshot-archive-cache/internal/adapter/watch"
	"github.com/vertextoedge/snapshot-archive-cache/internal/config"
	"github.com/vertextoedge/snapshot-archive-cache/internal/logger"
	"github.com/vertextoedge/snapshot-archive-cache/internal/service/archive"
	"github.com/vertextoedge/snapshot-archive-cache/internal/service/server"
	"go.uber.org/zap"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting snapshot-archive-cache",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Initialize filesystem manager
	fsManager, err := filesystem.NewManagerWithLayout(
		cfg.Archive.RootDir,
		cfg.Archive.SnapshotsDir,
		cfg.Archive.TimelapseDir,
	)
	if err != nil {
		zapLogger.Fatal("failed to create filesystem manager", zap.Error(err))
	}

	// Create archive caches
	archiveCache := archive.New(
		archiveConfig(cfg),
		fsManager,
		watch.NewService(logger.Named("watch")),
		resize.NewResizer(),
		logger.Named("archive"),
	)

	// Create HTTP server
	serverCfg := &server.Config{
		BindAddr:     cfg.HTTP.BindAddr,
		ReadTimeout:  cfg.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:  cfg.HTTP.GetIdleTimeout(),
	}
	httpServer := server.New(serverCfg, archiveCache, fsManager, logger.Named("http"))

	// Start HTTP server
	go func() {
		if err := httpServer.Start(); err != nil {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	zapLogger.Info("application started successfully",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.String("archive_dir", fsManager.RootDir()),
	)
	<-sigChan

	zapLogger.Info("shutdown signal received, stopping services...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop HTTP server before releasing watchers
	if err := httpServer.Stop(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	archiveCache.Dispose()

	zapLogger.Info("application stopped successfully")
}

// archiveConfig maps file configuration onto the cache settings
func archiveConfig(cfg *config.Config) archive.Config {
	settle := cfg.Watch.GetSettleDelay()
	sweep := cfg.Index.GetSweepInterval()

	return archive.Config{
		Dates: archive.IndexConfig{
			IdleExpiry:    cfg.Index.Dates.GetIdleExpiry(),
			SweepInterval: sweep,
			SettleDelay:   settle,
		},
		Partitions: archive.PartitionIndexConfig{
			IdleExpiry:    cfg.Index.Partitions.GetIdleExpiry(),
			SweepInterval: sweep,
			MaxWatchers:   cfg.Index.Partitions.MaxWatchers,
			SettleDelay:   settle,
		},
		Timelapse: archive.IndexConfig{
			IdleExpiry:    cfg.Index.Timelapse.GetIdleExpiry(),
			SweepInterval: sweep,
			SettleDelay:   settle,
		},
		Thumbnails: archive.ThumbnailConfig{
			Capacity:      cfg.Thumbnails.Capacity,
			MaxAge:        cfg.Thumbnails.GetMaxAge(),
			Quality:       cfg.Thumbnails.Quality,
			SweepInterval: cfg.Thumbnails.GetSweepInterval(),
		},
		MaxThumbnailWidth: cfg.Thumbnails.MaxWidth,
	}
}
