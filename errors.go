package glvk

import "errors"

// Texture errors.
var (
	// ErrNotImplemented is returned for reachable combinations the engine
	// does not handle, instead of producing wrong texels.
	ErrNotImplemented = errors.New("glvk: operation not implemented")

	// ErrUnsupportedDevice is returned when the device lacks a capability
	// and no fallback path exists.
	ErrUnsupportedDevice = errors.New("glvk: unsupported by device")

	// ErrImmutable is returned when an operation would change the levels
	// of an immutable texture.
	ErrImmutable = errors.New("glvk: texture storage is immutable")

	// ErrDestroyed is returned by operations on a destroyed texture.
	ErrDestroyed = errors.New("glvk: texture destroyed")

	// ErrContextClosed is returned by operations on a closed context.
	ErrContextClosed = errors.New("glvk: context closed")

	// ErrNoImage is returned when an operation needs image data and the
	// texture has none defined.
	ErrNoImage = errors.New("glvk: texture has no image")
)
