// Package config provides configuration structures and utilities for commentcrawl.
// It merges CLI flags, the .commentcrawl YAML file and the environment into
// one Config, and derives per-target crawler options from it.
package config
