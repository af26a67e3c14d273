package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the hosted catalog caching layer.
type Config struct {
	// Enabled controls whether caching is active. When false, no
	// middleware is applied and all requests pass through uncached.
	Enabled bool

	// ListingTTL is the TTL for the public registry listing.
	ListingTTL time.Duration

	// ScaffoldTTL is the TTL for generated manifest and source files.
	ScaffoldTTL time.Duration

	// MaxSize is the maximum number of entries per cache instance.
	MaxSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:     true,
		ListingTTL:  60 * time.Second,
		ScaffoldTTL: 30 * time.Second,
		MaxSize:     1000,
	}
}

// ConfigFromEnv reads cache configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - STUDIO_CACHE_ENABLED: "true" or "false" (default: "true")
//   - STUDIO_CACHE_LISTING_TTL: duration in seconds (default: 60)
//   - STUDIO_CACHE_SCAFFOLD_TTL: duration in seconds (default: 30)
//   - STUDIO_CACHE_MAX_SIZE: max entries per cache (default: 1000)
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("STUDIO_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("STUDIO_CACHE_LISTING_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ListingTTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("STUDIO_CACHE_SCAFFOLD_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ScaffoldTTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("STUDIO_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}
	return cfg
}
