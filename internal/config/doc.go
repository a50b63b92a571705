// Package config loads, normalizes, and validates markad configuration data.
//
// It supplies repository defaults for every detector threshold and heuristic
// window, expands user paths (including tilde shortcuts), and reads TOML files.
// Channel-specific tuning lives in the [channels] table so empirically tuned
// special cases stay data rather than code.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
