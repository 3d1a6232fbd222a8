// Package config provides configuration structures and utilities for neardup.
// It defines the dedup parameters (signature length, banding, shingle width,
// similarity threshold, seed), the stage order, and report and history
// database preferences, along with the YAML configuration file.
package config
