package soft

import "errors"

// Validation errors reported by Device.Err.
var (
	// ErrInvalidDesc is returned for malformed resource descriptors.
	ErrInvalidDesc = errors.New("soft: invalid descriptor")

	// ErrOutOfBounds is reported when a copy or access falls outside a
	// resource.
	ErrOutOfBounds = errors.New("soft: access out of bounds")

	// ErrLayoutMismatch is reported when a command names a layout other
	// than the one the image was transitioned to.
	ErrLayoutMismatch = errors.New("soft: layout mismatch")
)
