// Package config loads the example server's runtime configuration via
// github.com/spf13/viper.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the example subsd server's configuration surface.
type Config struct {
	// ListenAddr is the TCP address the server binds to.
	ListenAddr string `mapstructure:"listen_addr"`
	// MaxConnections bounds the number of concurrently accepted clients.
	MaxConnections int64 `mapstructure:"max_connections"`
	// DefaultSnapshotSize is a configured snapshot bound. The example
	// server does not read it: its commits use an unlimited snapshot.
	DefaultSnapshotSize int `mapstructure:"default_snapshot_size"`
	// MetricsNamespace is the Prometheus namespace the server registers
	// its collectors under.
	MetricsNamespace string `mapstructure:"metrics_namespace"`
}

// Defaults returns the configuration used when no file or flags override
// it.
func Defaults() Config {
	return Config{
		ListenAddr:          ":9443",
		MaxConnections:      1024,
		DefaultSnapshotSize: 1000,
		MetricsNamespace:    "subsd",
	}
}

// Load reads configuration from an SUBSD_-prefixed environment, the
// optional config file at path (if non-empty), and the compiled-in
// defaults, in that order of precedence (viper lets environment values
// override file values).
func Load(path string) (Config, error) {
	v := viper.New()
	defaults := Defaults()
	v.SetDefault("listen_addr", defaults.ListenAddr)
	v.SetDefault("max_connections", defaults.MaxConnections)
	v.SetDefault("default_snapshot_size", defaults.DefaultSnapshotSize)
	v.SetDefault("metrics_namespace", defaults.MetricsNamespace)

	v.SetEnvPrefix("SUBSD")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
