// Package store persists content items and their pipeline stage in SQLite.
// It is the single source of truth for item state: all stage changes go
// through Apply, which performs an atomic, durable read-modify-write.
package store
