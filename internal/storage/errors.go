package storage

import "errors"

// Sentinel errors for storage facts. Collections return these wrapped with
// context; callers match them with errors.Is.
var (
	// ErrNotFound indicates the entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the entity (or a unique child) already exists
	ErrConflict = errors.New("conflict")
	// ErrPersistence indicates the persistence backend rejected a write
	ErrPersistence = errors.New("persistence failed")
)
