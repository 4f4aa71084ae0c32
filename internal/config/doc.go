// Package config loads server configuration from a JSON file with
// URLFRONTIER_* environment overrides and resolves the default data
// directory per host OS.
package config
