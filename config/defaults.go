package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "sitepulse.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.site_url", "http://localhost:8710")

	// Scan engine defaults
	v.SetDefault("scan.batch_size", 25)
	v.SetDefault("scan.start_delay_seconds", 2)
	v.SetDefault("scan.tick_delay_seconds", 10)
	v.SetDefault("scan.check_links", false)
	v.SetDefault("scan.default_post_types", []string{"post", "page"})
}
