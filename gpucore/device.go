package gpucore

import (
	"errors"

	"github.com/gogpu/glvk/format"
)

// Device errors shared by all implementations.
var (
	// ErrInvalidHandle is returned when a handle does not name a live resource.
	ErrInvalidHandle = errors.New("gpucore: invalid handle")

	// ErrOutOfMemory is returned when an allocation cannot be satisfied.
	ErrOutOfMemory = errors.New("gpucore: out of device memory")

	// ErrBufferInUse is returned when the host reads a buffer the GPU has
	// not finished writing.
	ErrBufferInUse = errors.New("gpucore: buffer in use by the GPU")

	// ErrUnsupported is returned by Utils helpers a device cannot run.
	ErrUnsupported = errors.New("gpucore: operation not supported by device")
)

// CommandBuffer records commands outside of a render pass.
//
// Commands are recorded in call order. Layouts passed to copy, clear and
// blit commands must match the layout the image was last transitioned to.
type CommandBuffer interface {
	// PipelineBarrier records image memory barriers between src and dst
	// stages.
	PipelineBarrier(src, dst PipelineStage, barriers ...ImageBarrier)

	// ClearColorImage clears a subresource range. c is in the image
	// format's component space.
	ClearColorImage(img ImageHandle, layout NativeLayout, c format.Color, r SubresourceRange)

	// ClearDepthStencilImage clears the depth and/or stencil aspects.
	ClearDepthStencilImage(img ImageHandle, layout NativeLayout, depth float64, stencil uint32, r SubresourceRange)

	// CopyBufferToImage copies buffer contents into image regions.
	CopyBufferToImage(buf BufferHandle, img ImageHandle, layout NativeLayout, regions ...BufferImageCopy)

	// CopyImageToBuffer copies image regions into a buffer.
	CopyImageToBuffer(img ImageHandle, layout NativeLayout, buf BufferHandle, regions ...BufferImageCopy)

	// CopyImage copies texels between images of transfer-compatible formats.
	CopyImage(src ImageHandle, srcLayout NativeLayout, dst ImageHandle, dstLayout NativeLayout, regions ...ImageCopy)

	// BlitImage copies with scaling and format conversion.
	BlitImage(src ImageHandle, srcLayout NativeLayout, dst ImageHandle, dstLayout NativeLayout, filter Filter, regions ...ImageBlit)

	// ResolveImage resolves a multisampled image into a single-sampled one.
	ResolveImage(src ImageHandle, srcLayout NativeLayout, dst ImageHandle, dstLayout NativeLayout, regions ...ImageCopy)
}

// ClearRegionParams describes a draw-based clear of part of one level.
// The image must be in the color attachment layout.
type ClearRegionParams struct {
	Image  ImageHandle
	Format format.ID
	Level  uint32
	Layer  uint32
	Box    Box
	Color  format.Color
	// Mask selects the components to write. Zero writes all of them.
	Mask uint8
}

// DrawCopyParams describes a shader-based copy between two images. The
// source must be shader readable and the destination in the color
// attachment layout.
type DrawCopyParams struct {
	Src       ImageHandle
	SrcFormat format.ID
	SrcLoad   format.Swizzle
	SrcLevel  uint32
	SrcLayer  uint32
	SrcOffset Offset3D

	Dst       ImageHandle
	DstFormat format.ID
	DstStore  format.Swizzle
	DstLevel  uint32
	DstLayer  uint32
	DstOffset Offset3D

	Extent           Extent3D
	FlipY            bool
	PremultiplyAlpha bool
	UnmultiplyAlpha  bool

	// SrcView and DstView are the views the draw binds. InvalidHandle
	// addresses the level and layer of the image directly.
	SrcView ViewHandle
	DstView ViewHandle
}

// MipmapParams describes one downsample step. Levels are native.
//
// For draw-based generation DstLevelCount is 1 and the image is in the
// color attachment layout, with SrcLevel bound through a sampled view. For
// compute-based generation the image is in the general layout and up to
// Features.MaxGenerateMipmapLevels destination levels are produced.
type MipmapParams struct {
	Image         ImageHandle
	Format        format.ID
	Extent        Extent3D // size of native level 0
	SrcLevel      uint32
	DstLevelCount uint32
	Layer         uint32
	Filter        Filter

	// SrcView samples SrcLevel. DstViews holds one view per destination
	// level: storage views for compute, the render target view of Layer
	// for draw.
	SrcView  ViewHandle
	DstViews []ViewHandle
	// WorkgroupsX and WorkgroupsY size the compute dispatch over the
	// first destination level.
	WorkgroupsX, WorkgroupsY uint32
}

// Utils runs draw and compute helpers on a command buffer.
type Utils interface {
	ClearRegion(cmd CommandBuffer, p ClearRegionParams) error
	CopyImageWithDraw(cmd CommandBuffer, p DrawCopyParams) error
	GenerateMipmapWithDraw(cmd CommandBuffer, p MipmapParams) error
	GenerateMipmapWithCompute(cmd CommandBuffer, p MipmapParams) error
}

// Device is the command recording and resource collaborator.
//
// A Device is driven by one recording context at a time. Submitted work
// executes asynchronously; ImageInUse and BufferInUse report whether
// submitted work still references a resource.
type Device interface {
	// Features returns the immutable capability set of the device.
	Features() Features

	CreateImage(desc *ImageDesc) (ImageHandle, error)
	ImportImage(desc *ImageDesc, mem ExternalMemory) (ImageHandle, error)
	// DestroyImage releases an image once the GPU no longer uses it.
	DestroyImage(h ImageHandle)

	CreateView(desc *ViewDesc) (ViewHandle, error)
	DestroyView(h ViewHandle)

	CreateBuffer(desc *BufferDesc) (BufferHandle, error)
	DestroyBuffer(h BufferHandle)
	// WriteBuffer writes host data into a host-visible buffer.
	WriteBuffer(h BufferHandle, offset uint64, data []byte) error
	// ReadBuffer reads a host-visible buffer. It fails with ErrBufferInUse
	// if GPU writes to the buffer have not completed.
	ReadBuffer(h BufferHandle, offset uint64, data []byte) error

	// OutsideRenderPassCommandBuffer returns a command buffer the declared
	// accesses can be recorded into, ending any open render pass that
	// conflicts with them.
	OutsideRenderPassCommandBuffer(access *Access) (CommandBuffer, error)
	// FlushCommandsAndEndRenderPass closes the open render pass.
	FlushCommandsAndEndRenderPass(reason string) error
	// Flush submits recorded work without waiting.
	Flush(reason string) error
	// Finish submits recorded work and blocks until the GPU is idle.
	Finish(reason string) error

	ImageInUse(h ImageHandle) bool
	BufferInUse(h BufferHandle) bool

	Utils() Utils
}
