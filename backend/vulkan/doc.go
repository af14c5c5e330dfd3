// Package vulkan records glvk commands into Vulkan command buffers.
//
// The package does not own a device. An application that already drives
// Vulkan through github.com/goki/vulkan binds its images and buffers to
// gpucore handles with a Handles table and records through a Recorder:
//
//	h := vulkan.NewHandles()
//	h.BindImage(img, vkImage, format.RGBA8Unorm)
//	rec := vulkan.NewRecorder(cmd, h)
//	rec.PipelineBarrier(src, dst, barriers...)
//	if err := rec.Err(); err != nil {
//		return err
//	}
//
// Layout, stage, access, aspect and format mappings are exported for
// applications that build their own barriers.
package vulkan
