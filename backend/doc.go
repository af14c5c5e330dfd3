// Package backend selects the device glvk records into.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// The software backend is registered on import of this package; the HAL
// backend registers when backend/native is imported:
//
//	import _ "github.com/gogpu/glvk/backend/native"
//
// # Backend Selection
//
// Use InitDefault to get the best backend that initializes, or Get to
// request one by name:
//
//	b, err := backend.InitDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	ctx, err := glvk.NewContext(b.Device())
//
// # Available Backends
//
//   - "software": CPU device, always available
//   - "native": gogpu/wgpu HAL device on Vulkan
package backend
