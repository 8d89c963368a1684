// Package config loads, validates, and defaults mimic's TOML configuration.
package config
