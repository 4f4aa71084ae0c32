package config

import (
	"os"
	"strconv"
)

// FromEnv overlays URLFRONTIER_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("URLFRONTIER_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("URLFRONTIER_DEFAULT_DELAY_REQUESTABLE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.DefaultDelayRequestable = n
		}
	}
	if v := os.Getenv("URLFRONTIER_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("URLFRONTIER_STORE_PURGE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Store.Purge = b
		}
	}
	if v := os.Getenv("URLFRONTIER_STORE_BLOOM_FILTERS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Store.BloomFilters = b
		}
	}
	if v := os.Getenv("URLFRONTIER_STORE_MAX_BACKGROUND_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.MaxBackgroundJobs = n
		}
	}
	if v := os.Getenv("URLFRONTIER_STORE_MAX_SUBCOMPACTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.MaxSubcompactions = n
		}
	}
	if v := os.Getenv("URLFRONTIER_STORE_MAX_BYTES_FOR_LEVEL_BASE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Store.MaxBytesForLevelBase = n
		}
	}
	if v := os.Getenv("URLFRONTIER_STORE_STATS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Store.Stats = b
		}
	}
}
