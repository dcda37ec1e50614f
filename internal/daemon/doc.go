// Package daemon coordinates the long-running quill process.
//
// It wires the item store, generation driver, publish scheduler, and
// heartbeat reporter into a single lifecycle with flock-based locking to
// prevent multiple instances. Keep orchestration logic here: pipeline steps
// live in their own packages while the daemon focuses on startup and
// shutdown.
package daemon
