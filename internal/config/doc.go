// Package config loads, normalizes, and validates the TOML configuration that
// drives the vise daemon and CLI.
//
// Load resolves the effective config file, layers it over repository defaults,
// expands filesystem paths, and rejects unusable values before any component
// starts. Other packages should accept a *Config rather than re-reading the
// file so every subsystem observes the same normalized view.
package config
