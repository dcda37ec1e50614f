package store

import "errors"

var (
	// ErrNotFound indicates no item exists for the requested id.
	ErrNotFound = errors.New("item not found")
	// ErrDuplicateInput indicates a raw input with the same fingerprint was
	// already registered.
	ErrDuplicateInput = errors.New("duplicate input")
	// ErrDuplicatePost indicates a published post id is already recorded on
	// another item.
	ErrDuplicatePost = errors.New("duplicate post id")
)
