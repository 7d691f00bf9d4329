package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Archive    ArchiveConfig   `mapstructure:"archive"`
	Index      IndexConfig     `mapstructure:"index"`
	Watch      WatchConfig     `mapstructure:"watch"`
	Thumbnails ThumbnailConfig `mapstructure:"thumbnails"`
	HTTP       HTTPConfig      `mapstructure:"http"`
	Logging    LoggingConfig   `mapstructure:"logging"`
}

// ArchiveConfig describes the archive layout on disk
type ArchiveConfig struct {
	RootDir      string `mapstructure:"root_dir"`
	SnapshotsDir string `mapstructure:"snapshots_dir"`
	TimelapseDir string `mapstructure:"timelapse_dir"`
}

// IndexConfig contains settings for the directory listing caches
type IndexConfig struct {
	SweepInterval string               `mapstructure:"sweep_interval"`
	Dates         ListingConfig        `mapstructure:"dates"`
	Partitions    PartitionIndexConfig `mapstructure:"partitions"`
	Timelapse     ListingConfig        `mapstructure:"timelapse"`
}

// ListingConfig contains settings for a single watched listing
type ListingConfig struct {
	IdleExpiry string `mapstructure:"idle_expiry"`
}

// PartitionIndexConfig contains settings for the per-date listings
type PartitionIndexConfig struct {
	IdleExpiry  string `mapstructure:"idle_expiry"`
	MaxWatchers int    `mapstructure:"max_watchers"`
}

// WatchConfig contains filesystem watch settings
type WatchConfig struct {
	SettleDelay string `mapstructure:"settle_delay"`
}

// ThumbnailConfig contains thumbnail cache settings
type ThumbnailConfig struct {
	Capacity      int    `mapstructure:"capacity"`
	MaxAge        string `mapstructure:"max_age"`
	Quality       int    `mapstructure:"quality"`
	MaxWidth      int    `mapstructure:"max_width"`
	SweepInterval string `mapstructure:"sweep_interval"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	BindAddr     string `mapstructure:"bind_addr"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("archive.snapshots_dir", "snapshots")
	v.SetDefault("archive.timelapse_dir", "timelapse")
	v.SetDefault("index.sweep_interval", "1m")
	v.SetDefault("index.dates.idle_expiry", "30m")
	v.SetDefault("index.partitions.idle_expiry", "30m")
	v.SetDefault("index.partitions.max_watchers", 10)
	v.SetDefault("index.timelapse.idle_expiry", "30m")
	v.SetDefault("watch.settle_delay", "2s")
	v.SetDefault("thumbnails.capacity", 500)
	v.SetDefault("thumbnails.max_age", "1h")
	v.SetDefault("thumbnails.quality", 80)
	v.SetDefault("thumbnails.max_width", 1920)
	v.SetDefault("thumbnails.sweep_interval", "5m")
	v.SetDefault("http.bind_addr", "0.0.0.0:8080")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate archive config
	if c.Archive.RootDir == "" {
		return fmt.Errorf("archive.root_dir is required")
	}
	if c.Archive.SnapshotsDir == "" {
		return fmt.Errorf("archive.snapshots_dir is required")
	}
	if c.Archive.TimelapseDir == "" {
		return fmt.Errorf("archive.timelapse_dir is required")
	}

	// Validate index config
	if c.Index.Partitions.MaxWatchers < 1 {
		return fmt.Errorf("index.partitions.max_watchers must be positive")
	}

	// Validate thumbnail config
	if c.Thumbnails.Capacity < 1 {
		return fmt.Errorf("thumbnails.capacity must be positive")
	}
	if c.Thumbnails.Quality < 1 || c.Thumbnails.Quality > 100 {
		return fmt.Errorf("thumbnails.quality must be between 1 and 100")
	}
	if c.Thumbnails.MaxWidth < 1 {
		return fmt.Errorf("thumbnails.max_width must be positive")
	}

	// Validate durations
	durations := []struct {
		key   string
		value string
	}{
		{"index.sweep_interval", c.Index.SweepInterval},
		{"index.dates.idle_expiry", c.Index.Dates.IdleExpiry},
		{"index.partitions.idle_expiry", c.Index.Partitions.IdleExpiry},
		{"index.timelapse.idle_expiry", c.Index.Timelapse.IdleExpiry},
		{"watch.settle_delay", c.Watch.SettleDelay},
		{"thumbnails.max_age", c.Thumbnails.MaxAge},
		{"thumbnails.sweep_interval", c.Thumbnails.SweepInterval},
		{"http.read_timeout", c.HTTP.ReadTimeout},
		{"http.write_timeout", c.HTTP.WriteTimeout},
		{"http.idle_timeout", c.HTTP.IdleTimeout},
	}
	for _, d := range durations {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetSweepInterval returns the index sweep interval as time.Duration
func (c *IndexConfig) GetSweepInterval() time.Duration {
	d, _ := time.ParseDuration(c.SweepInterval)
	if d == 0 {
		return time.Minute
	}
	return d
}

// GetIdleExpiry returns the idle expiry as time.Duration
func (c *ListingConfig) GetIdleExpiry() time.Duration {
	d, _ := time.ParseDuration(c.IdleExpiry)
	if d == 0 {
		return 30 * time.Minute
	}
	return d
}

// GetIdleExpiry returns the idle expiry as time.Duration
func (c *PartitionIndexConfig) GetIdleExpiry() time.Duration {
	d, _ := time.ParseDuration(c.IdleExpiry)
	if d == 0 {
		return 30 * time.Minute
	}
	return d
}

// GetSettleDelay returns the settle delay as time.Duration. Zero is allowed.
func (c *WatchConfig) GetSettleDelay() time.Duration {
	d, _ := time.ParseDuration(c.SettleDelay)
	return d
}

// GetMaxAge returns the thumbnail max age as time.Duration
func (c *ThumbnailConfig) GetMaxAge() time.Duration {
	d, _ := time.ParseDuration(c.MaxAge)
	if d == 0 {
		return time.Hour
	}
	return d
}

// GetSweepInterval returns the thumbnail purge interval as time.Duration
func (c *ThumbnailConfig) GetSweepInterval() time.Duration {
	d, _ := time.ParseDuration(c.SweepInterval)
	if d == 0 {
		return 5 * time.Minute
	}
	return d
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	d, _ := time.ParseDuration(c.IdleTimeout)
	if d == 0 {
		return 60 * time.Second
	}
	return d
}
