// Package heartbeat emits periodic pipeline liveness reports built from
// stage counts. Reporting is read-only and best-effort.
package heartbeat
