// Package pipeline owns the stage graph and the transitioner, the only
// component allowed to change an item's stage.
package pipeline
