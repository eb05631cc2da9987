package config

import "os"

// Config holds the application configuration
// Note: This is a stateless configuration - no database needed.
// Auth, billing, and request queuing are handled by the serving gateway.
type Config struct {
	// Environment
	Environment string
	Port        string

	// Model weights
	WeightsCacheDir string // Local cache the underlying library reads via AUDIOCRAFT_CACHE_DIR
	WeightsURL      string // Archive fetched once when the cache is absent

	// Inference
	MagnetBin         string // Path to the MAGNeT inference runner binary
	DefaultCheckpoint string // Checkpoint used when a request doesn't name one

	// Output
	OutputDir string // Fixed directory the predictor wipes and repopulates per request

	// Observability
	SentryDSN string // Sentry DSN for error tracking

	// Auth mode
	// - "none": No auth (self-hosted, local dev)
	// - "gateway": Trust X-User-* headers from the cloud gateway
	AuthMode string
}

func Load() *Config {
	return &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		Port:              getEnv("PORT", "8080"),
		WeightsCacheDir:   getEnv("AUDIOCRAFT_CACHE_DIR", "checkpoints"),
		WeightsURL:        getEnv("WEIGHTS_URL", "https://weights.replicate.delivery/default/facebookresearch/audiocraft/magnet.tar"),
		MagnetBin:         getEnv("MAGNET_BIN", "/usr/local/bin/magnet-runner"),
		DefaultCheckpoint: getEnv("DEFAULT_CHECKPOINT", "facebook/magnet-small-10secs"),
		OutputDir:         getEnv("OUTPUT_DIR", "/tmp/output"),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		AuthMode:          getEnv("AUTH_MODE", "none"), // Default to no auth for self-hosted
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

// IsGatewayMode returns true if running behind the cloud gateway
func (c *Config) IsGatewayMode() bool {
	return c.AuthMode == "gateway"
}
