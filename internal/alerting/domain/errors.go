package alerting

import "errors"

var (
	// ErrNilStore indicates a missing store dependency.
	ErrNilStore = errors.New("alerting: nil store")
	// ErrMissingDevice indicates an empty device id.
	ErrMissingDevice = errors.New("alerting: missing device id")
	// ErrInvalidLatchMode indicates an unknown latch mode.
	ErrInvalidLatchMode = errors.New("alerting: invalid latch mode")
)
