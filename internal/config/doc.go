// Package config loads, validates, and normalizes the TOML configuration for
// the quill daemon and CLI.
package config
