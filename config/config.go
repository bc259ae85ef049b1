// Package config loads the sitepulse configuration via Viper.
package config

// Config represents the core sitepulse configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Scan     ScanConfig     `mapstructure:"scan"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the sitepulse HTTP server
type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	SiteURL string `mapstructure:"site_url"` // Public base URL of the site; used to classify internal links
}

// DefaultServerPort is the port used when none is configured
const DefaultServerPort = 8710

// ScanConfig tunes the posts-maintenance scan engine.
//
// BatchSize bounds the per-tick cost of both the mutation drain and the
// metrics drain; it is the engine's backpressure mechanism.
type ScanConfig struct {
	BatchSize         int      `mapstructure:"batch_size"`          // Posts processed per tick per queue (default: 25)
	StartDelaySeconds int      `mapstructure:"start_delay_seconds"` // Delay before the first processing tick (default: 2)
	TickDelaySeconds  int      `mapstructure:"tick_delay_seconds"`  // Delay between processing ticks (default: 10)
	CheckLinks        bool     `mapstructure:"check_links"`         // Enable internal broken-link detection (4-ratio health score)
	DefaultPostTypes  []string `mapstructure:"default_post_types"`  // Types scanned when a request names none
}
