// Package scheduler decides when queued items get published. It applies the
// configured minimum inter-publish interval, delegates delivery to the
// platform publisher with bounded retries, and records the outcome through
// the stage transitioner.
package scheduler
