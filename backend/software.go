package backend

import (
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/soft"
)

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU device backend.
	BackendSoftware = "software"
	// BackendNative is the name of the gogpu/wgpu HAL backend.
	BackendNative = "native"
)

// SoftwareBackend runs every command on the CPU.
type SoftwareBackend struct {
	features gpucore.Features
	dev      *soft.Device
}

// init registers the software backend on package import.
func init() {
	Register(BackendSoftware, func() Backend {
		return NewSoftwareBackend()
	})
}

// NewSoftwareBackend creates a software backend with the default
// feature set.
func NewSoftwareBackend() *SoftwareBackend {
	return &SoftwareBackend{features: gpucore.DefaultFeatures()}
}

// NewSoftwareBackendWithFeatures creates a software backend that
// advertises f, for forcing a code path.
func NewSoftwareBackendWithFeatures(f gpucore.Features) *SoftwareBackend {
	return &SoftwareBackend{features: f}
}

// Name returns the backend identifier.
func (b *SoftwareBackend) Name() string {
	return BackendSoftware
}

// Init creates the device.
func (b *SoftwareBackend) Init() error {
	b.dev = soft.New(b.features)
	return nil
}

// Close releases the device.
func (b *SoftwareBackend) Close() {
	b.dev = nil
}

// Device returns the device, or nil before Init.
func (b *SoftwareBackend) Device() gpucore.Device {
	if b.dev == nil {
		return nil
	}
	return b.dev
}

// Err returns the validation failures the device recorded.
func (b *SoftwareBackend) Err() error {
	if b.dev == nil {
		return ErrNotInitialized
	}
	return b.dev.Err()
}
