package backend

import (
	"errors"

	"github.com/gogpu/glvk/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend supplies the gpucore.Device a glvk context records into.
//
// Backends must be registered via Register() and are selected via
// Get() or Default().
type Backend interface {
	// Name returns the backend identifier (e.g., "software", "native").
	Name() string

	// Init acquires the device. It must be called before Device.
	Init() error

	// Close releases the device. The backend should not be used after
	// Close is called.
	Close()

	// Device returns the initialized device, or nil before Init.
	Device() gpucore.Device
}
