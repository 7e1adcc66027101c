package supply

import "errors"

var (
	// ErrInvalidArgument is returned when required text is empty or a value is malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a referenced category or item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidFormat is returned when an import payload fails structural validation.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrStorage is returned when the aggregate could not be written to durable storage.
	// The in-memory change it accompanies has still been applied.
	ErrStorage = errors.New("storage failure")
)
