package activation

import "errors"

var (
	// ErrMissingKey is returned when the caller supplied no hardware key.
	ErrMissingKey = errors.New("no key provided")
	// ErrStorageFailure wraps every storage error other than a duplicate key.
	ErrStorageFailure = errors.New("storage failure")
)
