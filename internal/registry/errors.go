package registry

import "errors"

var (
	// ErrValidation is returned for missing or malformed input
	ErrValidation = errors.New("validation failed")

	// ErrDirectoryRegistration is returned when the SML rejected a
	// registration change. The hook error is joined to it.
	ErrDirectoryRegistration = errors.New("SML registration failed")
)
