// Package logging wraps log/slog with the project's handler setup and shared
// attribute helpers.
package logging
