package readings

import "errors"

var (
	// ErrMissingDevice indicates a measurement without device id.
	ErrMissingDevice = errors.New("reading: missing device id")
	// ErrInvalidDevice indicates a device id that cannot be used as a path
	// segment or a NATS subject token.
	ErrInvalidDevice = errors.New("reading: invalid device id")
	// ErrInvalidKey indicates a missing or non-positive timestamp key.
	ErrInvalidKey = errors.New("reading: invalid timestamp key")
)

// ErrNotFound indicates a missing measurement.
var ErrNotFound = errors.New("reading: not found")
