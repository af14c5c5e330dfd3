//go:build !nogpu

package native

import (
	"github.com/gogpu/glvk/backend"
	"github.com/gogpu/glvk/gpucore"
)

func init() {
	backend.Register(backend.BackendNative, func() backend.Backend {
		return &halBackend{}
	})
}

// halBackend opens the Vulkan HAL device on Init.
type halBackend struct {
	dev *Device
}

func (b *halBackend) Name() string { return backend.BackendNative }

func (b *halBackend) Init() error {
	d, err := Open()
	if err != nil {
		return err
	}
	b.dev = d
	return nil
}

func (b *halBackend) Close() {
	if b.dev == nil {
		return
	}
	if err := b.dev.Close(); err != nil {
		b.dev.log.Warn("native: close", "err", err)
	}
	b.dev = nil
}

func (b *halBackend) Device() gpucore.Device {
	if b.dev == nil {
		return nil
	}
	return b.dev
}
