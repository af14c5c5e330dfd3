// Package native provides a gpucore.Device backed by a gogpu/wgpu HAL
// device.
//
// Commands recorded by glvk execute against a host mirror of every image,
// the same software executor the tests use. Flush makes the HAL textures
// resident: levels written since the last flush are uploaded with
// queue.WriteTexture and each texture is transitioned to the usage that
// matches the layout its mirror was last transitioned to. Only the final
// state of each flush reaches the HAL, so a chain of barriers recorded
// between two flushes collapses into at most two transitions.
//
// ReadLevel copies a level back from the HAL texture. It is the only path
// that observes work other HAL users did on a texture.
//
// Usage:
//
//	dev, err := native.Open()
//	if err != nil {
//		return err
//	}
//	defer dev.Close()
//
//	ctx, err := glvk.NewContext(dev)
//
// NewDevice and NewDeviceFromProvider wrap a device owned by someone else,
// such as a gogpu application.
package native
