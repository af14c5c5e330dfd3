//go:build !nogpu

package main

import (
	"log"

	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/glvk/backend/native"
	"github.com/gogpu/glvk/gpucore"
)

// openNoop opens the HAL device on the noop backend, which keeps texture
// residency without a GPU.
func openNoop() (gpucore.Device, func(), error) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return nil, nil, err
	}
	d, err := native.OpenInstance(instance)
	if err != nil {
		instance.Destroy()
		return nil, nil, err
	}
	return d, func() {
		if err := d.Close(); err != nil {
			log.Printf("Close: %v", err)
		}
	}, nil
}
