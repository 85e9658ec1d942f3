package bento

import "errors"

var (
	// ErrOutOfMemory is returned when a column buffer allocation fails.
	// A failed operation leaves the store in its pre-call state.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrUnknownEntity is returned when an entity id is not present in the
	// store's directory.
	ErrUnknownEntity = errors.New("unknown entity")
)
