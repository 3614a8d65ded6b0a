// Package config loads process configuration from the environment,
// optionally seeded by a local .env file. No example in the retrieved
// corpus uses a config library beyond this load-then-getenv pattern,
// so that is what this package does.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the server process needs beyond its CLI
// flags: whether to expose Prometheus metrics and where.
type Config struct {
	MetricsEnabled bool
	MetricsAddr    string
}

// Load reads a .env file if present (ignored if missing) and then
// layers environment variables over the defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		MetricsEnabled: false,
		MetricsAddr:    ":9090",
	}

	if v, ok := os.LookupEnv("DUELCORE_METRICS_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MetricsEnabled = b
		}
	}
	if v, ok := os.LookupEnv("DUELCORE_METRICS_ADDR"); ok && v != "" {
		cfg.MetricsAddr = v
	}
	return cfg
}
