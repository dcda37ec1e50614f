// Package services defines the shared failure taxonomy for external
// collaborators. Sentinel markers tag errors as transient or permanent so the
// retry coordinator can decide whether another attempt is worthwhile.
package services
