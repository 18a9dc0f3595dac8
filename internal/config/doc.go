// Package config loads, normalizes, and validates scanmatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts) and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need: data and export directories, the scanner backend, the
// matcher engine and the capture session timings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
