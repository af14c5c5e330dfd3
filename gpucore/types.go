package gpucore

import "github.com/gogpu/glvk/format"

// Resource handles
//
// These opaque handles represent GPU resources. Each device implementation
// maintains a mapping between handles and actual backend resources.

// ImageHandle is an opaque handle to a GPU image.
type ImageHandle uint64

// ViewHandle is an opaque handle to an image view.
type ViewHandle uint64

// BufferHandle is an opaque handle to a GPU buffer.
type BufferHandle uint64

// InvalidHandle is the zero value, representing a null resource.
const InvalidHandle = 0

// Extent3D is a size in texels. Depth is 1 for 2D images.
type Extent3D struct {
	Width, Height, Depth uint32
}

// Offset3D is a texel offset.
type Offset3D struct {
	X, Y, Z int32
}

// Box is a texel region.
type Box struct {
	Offset Offset3D
	Extent Extent3D
}

// Contains reports whether b fully covers o.
func (b Box) Contains(o Box) bool {
	return o.Offset.X >= b.Offset.X && o.Offset.Y >= b.Offset.Y && o.Offset.Z >= b.Offset.Z &&
		int64(o.Offset.X)+int64(o.Extent.Width) <= int64(b.Offset.X)+int64(b.Extent.Width) &&
		int64(o.Offset.Y)+int64(o.Extent.Height) <= int64(b.Offset.Y)+int64(b.Extent.Height) &&
		int64(o.Offset.Z)+int64(o.Extent.Depth) <= int64(b.Offset.Z)+int64(b.Extent.Depth)
}

// Aspect is a bitmask of image aspects.
type Aspect uint8

// Image aspects.
const (
	AspectColor Aspect = 1 << iota
	AspectDepth
	AspectStencil
)

// AspectsOf returns the aspects present in a format.
func AspectsOf(id format.ID) Aspect {
	info := format.Get(id)
	var a Aspect
	if info.DepthBits > 0 {
		a |= AspectDepth
	}
	if info.StencilBits > 0 {
		a |= AspectStencil
	}
	if a == 0 {
		a = AspectColor
	}
	return a
}

// ImageType is the dimensionality of an image. Arrays and cube maps are 2D
// images with several layers.
type ImageType uint8

// Image types.
const (
	ImageType2D ImageType = iota
	ImageType3D
)

// ImageUsage is a bitmask specifying how an image will be used.
type ImageUsage uint32

// Image usage flags.
const (
	UsageTransferSrc ImageUsage = 1 << iota
	UsageTransferDst
	UsageSampled
	UsageStorage
	UsageColorAttachment
	UsageDepthStencilAttachment
	UsageInputAttachment
)

// ImageCreateFlags is a bitmask of image creation flags.
type ImageCreateFlags uint32

// Image creation flags.
const (
	CreateMutableFormat ImageCreateFlags = 1 << iota
	CreateCubeCompatible
	Create2DArrayCompatible
	CreateMultisampledRenderToSingleSampled
	CreateProtected
)

// ImageDesc describes an image to create.
type ImageDesc struct {
	Label   string
	Type    ImageType
	Format  format.ID
	Extent  Extent3D
	Levels  uint32
	Layers  uint32
	Samples uint32
	Usage   ImageUsage
	Flags   ImageCreateFlags
}

// ViewType is the shape of an image view.
type ViewType uint8

// View types.
const (
	View2D ViewType = iota
	View2DArray
	View3D
	ViewCube
	ViewCubeArray
)

// SubresourceRange selects native levels and layers of one or more
// aspects.
type SubresourceRange struct {
	Aspect     Aspect
	BaseLevel  uint32
	LevelCount uint32
	BaseLayer  uint32
	LayerCount uint32
}

// ViewDesc describes an image view.
type ViewDesc struct {
	Label   string
	Image   ImageHandle
	Type    ViewType
	Format  format.ID
	Swizzle format.Swizzle
	Range   SubresourceRange
	// Usage restricts the view (storage views of sRGB images, for example).
	Usage ImageUsage
}

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageHostRead
	BufferUsageHostWrite
)

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// ExternalMemory is memory imported from outside the device.
type ExternalMemory struct {
	Handle uintptr
	Size   uint64
	// Foreign marks memory owned by a foreign queue until acquired.
	Foreign bool
}

// Filter selects blit filtering.
type Filter uint8

// Blit filters.
const (
	FilterNearest Filter = iota
	FilterLinear
)

// BufferImageCopy is one region of a buffer/image copy. RowLength and
// ImageHeight are in texels; zero means tightly packed.
type BufferImageCopy struct {
	BufferOffset uint64
	RowLength    uint32
	ImageHeight  uint32
	Aspect       Aspect
	Level        uint32
	BaseLayer    uint32
	LayerCount   uint32
	Offset       Offset3D
	Extent       Extent3D
}

// ImageCopy is one region of an image/image copy or resolve.
type ImageCopy struct {
	Aspect     Aspect
	SrcLevel   uint32
	SrcLayer   uint32
	DstLevel   uint32
	DstLayer   uint32
	LayerCount uint32
	SrcOffset  Offset3D
	DstOffset  Offset3D
	Extent     Extent3D
}

// ImageBlit is one region of a scaled, filtered image copy. Offsets are
// corner pairs.
type ImageBlit struct {
	Aspect     Aspect
	SrcLevel   uint32
	SrcLayer   uint32
	DstLevel   uint32
	DstLayer   uint32
	LayerCount uint32
	SrcOffsets [2]Offset3D
	DstOffsets [2]Offset3D
}

// LevelExtent returns the size of mip level of an image with base size e.
func LevelExtent(e Extent3D, level uint32) Extent3D {
	return Extent3D{
		Width:  max(1, e.Width>>level),
		Height: max(1, e.Height>>level),
		Depth:  max(1, e.Depth>>level),
	}
}
