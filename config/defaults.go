package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "idjoin.db")

	// IdSet materialization defaults
	v.SetDefault("idset.joining_enabled", true)

	// Logging defaults
	v.SetDefault("log.json", false)
}
