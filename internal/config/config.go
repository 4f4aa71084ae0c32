package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// HTTPAddr is the API listen address.
	HTTPAddr string `json:"httpAddr"`
	// DefaultDelayRequestable is the hold duration in seconds applied to
	// dispatched URLs when a get request carries none.
	DefaultDelayRequestable int64 `json:"defaultDelayRequestable"`
	Store                   Store `json:"store"`
}

// Store carries the options recognized by the KV store.
type Store struct {
	// Path is the filesystem path of the store directory.
	Path string `json:"path"`
	// Purge deletes the path contents before opening.
	Purge bool `json:"purge"`
	// BloomFilters enables bloom filters for existence lookups.
	BloomFilters bool `json:"bloom_filters"`
	// MaxBackgroundJobs, MaxSubcompactions and MaxBytesForLevelBase are
	// tuning knobs passed through to the store.
	MaxBackgroundJobs    int   `json:"max_background_jobs"`
	MaxSubcompactions    int   `json:"max_subcompactions"`
	MaxBytesForLevelBase int64 `json:"max_bytes_for_level_base"`
	// Stats enables store-internal statistics capture.
	Stats bool `json:"stats"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:                ":7071",
		DefaultDelayRequestable: 30,
		Store: Store{
			Path: filepath.Join(DefaultDataDir(), "store"),
		},
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return Config{}, errors.New("yaml config not supported; use JSON")
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
