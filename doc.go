// Package glvk manages GLES texture objects on top of a Vulkan style
// device.
//
// # Overview
//
// A GLES texture is a bag of independently defined levels that may change
// size or format at any time. A Vulkan image is allocated once with a
// fixed format, extent and level count. glvk bridges the two: a Texture
// records what the client defined, allocates an image lazily when it is
// first used, queues uploads on the image until they can be applied, and
// reallocates the image when a redefinition or a new use makes the
// current one unfit.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/glvk"
//		"github.com/gogpu/glvk/backend"
//		"github.com/gogpu/glvk/format"
//	)
//
//	b, err := backend.InitDefault()
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//
//	ctx, err := glvk.NewContext(b.Device())
//	if err != nil {
//		return err
//	}
//	defer ctx.Close()
//
//	tex := ctx.NewTexture(glvk.Texture2D, "albedo")
//	defer tex.Destroy()
//
//	size := gpucore.Extent3D{Width: 256, Height: 256, Depth: 1}
//	err = tex.SetImage(glvk.LevelIndex(0), size, format.RGBA8Unorm, glvk.Unpack{}, glvk.HostPixels(pixels))
//	err = tex.GenerateMipmap()
//
// # Devices
//
// Everything glvk records goes through gpucore.Device. The software
// backend executes commands on the CPU and logs them, which is what the
// tests and the glvkdemo command use. backend/vulkan records into real
// Vulkan command buffers and backend/native wraps a wgpu HAL device.
//
// # Formats
//
// A format the device cannot store natively is emulated: RGB images are
// stored as RGBA with alpha forced to one, luminance formats are stored
// swizzled, and compressed formats without sampling support are
// decompressed on upload. format.Table lists the candidates and the
// context resolves them against the device features once per image.
//
// # Staged Updates
//
// Uploads, clears and copies are first queued on the image storage and
// flushed either right away, at the end of the API call, or when the
// image is next used. Clears that cover a whole level replace what was
// queued before them.
//
// # Logging
//
// glvk logs through log/slog. Nothing is logged unless SetLogger is
// called or a logger is passed with WithLogger. Performance warnings,
// such as CPU fallbacks and stalls, are logged at Warn level and counted
// in PerfCounters.
//
// # Concurrency
//
// A Context and its textures are not safe for concurrent use. CPU format
// conversion and CPU mipmap generation run on an internal worker pool.
package glvk
