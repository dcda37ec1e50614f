// Package retry wraps external calls with bounded attempts, exponential
// backoff, and failure classification. Callers always receive an Outcome,
// never a fault crossing the coordinator's boundary.
package retry
