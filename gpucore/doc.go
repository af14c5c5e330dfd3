// Package gpucore defines the narrow contract between the glvk texture
// engine and the GPU command layer underneath it.
//
// The engine never talks to a graphics API directly. It allocates images,
// views and buffers through a [Device], declares the accesses it is about to
// make with an [Access], and records barriers, copies, clears and blits into
// the [CommandBuffer] the device hands back. Draw and compute helpers the
// engine needs (draw-based copies, masked clears, mipmap generation) come
// from [Utils].
//
// # Architecture
//
// The package follows the shared core + thin adapters layout:
//
//	               +-----------------+
//	               |      glvk       |
//	               | (Texture, image)|
//	               +--------+--------+
//	                        |
//	               +--------v--------+
//	               |     gpucore     |
//	               | Device/Command  |
//	               +--------+--------+
//	                        |
//	      +-----------------+-----------------+
//	      |                 |                 |
//	+-----v------+   +------v------+   +------v------+
//	|  soft      |   |  native     |   |  vulkan     |
//	| host memory|   | gogpu/wgpu  |   | goki/vulkan |
//	+------------+   +-------------+   +-------------+
//
// # Resource Management
//
// GPU resources are referenced by opaque handles ([ImageHandle],
// [ViewHandle], [BufferHandle]). Each device keeps the mapping between
// handles and its own objects. Levels and layers in this package are always
// native (mip 0 is the first allocated level).
//
// # Layouts
//
// [NativeLayout], [PipelineStage] and [AccessMask] mirror the explicit API's
// synchronization vocabulary without depending on any binding. Backends
// translate them to their own constants.
package gpucore
