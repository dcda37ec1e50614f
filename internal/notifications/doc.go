// Package notifications delivers best-effort push notifications through ntfy.
// A missing topic yields a noop service so the pipeline never depends on the
// sink being reachable.
package notifications
