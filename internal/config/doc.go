// Package config loads, normalizes, and validates the TOML configuration
// shared by the daemon and CLI. Missing files fall back to defaults so a
// fresh install can run with nothing but API keys in the environment of the
// sample config.
package config
