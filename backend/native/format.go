package native

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

var textureFormats = map[format.ID]gputypes.TextureFormat{
	format.R8Unorm:        gputypes.TextureFormatR8Unorm,
	format.R8Snorm:        gputypes.TextureFormatR8Snorm,
	format.RG8Unorm:       gputypes.TextureFormatRG8Unorm,
	format.RGBA8Unorm:     gputypes.TextureFormatRGBA8Unorm,
	format.RGBA8UnormSRGB: gputypes.TextureFormatRGBA8UnormSrgb,
	format.RGBA8Snorm:     gputypes.TextureFormatRGBA8Snorm,
	format.RGBA8Uint:      gputypes.TextureFormatRGBA8Uint,
	format.RGBA8Sint:      gputypes.TextureFormatRGBA8Sint,
	format.BGRA8Unorm:     gputypes.TextureFormatBGRA8Unorm,
	format.BGRA8UnormSRGB: gputypes.TextureFormatBGRA8UnormSrgb,
	format.RGBA16Float:    gputypes.TextureFormatRGBA16Float,
	format.R32Float:       gputypes.TextureFormatR32Float,
	format.R32Uint:        gputypes.TextureFormatR32Uint,
	format.RGBA32Float:    gputypes.TextureFormatRGBA32Float,
	format.RGBA32Uint:     gputypes.TextureFormatRGBA32Uint,
	format.RGBA32Sint:     gputypes.TextureFormatRGBA32Sint,
	format.D16Unorm:       gputypes.TextureFormatDepth16Unorm,
	format.D24UnormS8Uint: gputypes.TextureFormatDepth24PlusStencil8,
	format.D32Float:       gputypes.TextureFormatDepth32Float,
	format.D32FloatS8Uint: gputypes.TextureFormatDepth32FloatStencil8,
	format.S8Uint:         gputypes.TextureFormatStencil8,
}

// TextureFormat returns the HAL format storing id.
func TextureFormat(id format.ID) (gputypes.TextureFormat, bool) {
	f, ok := textureFormats[id]
	return f, ok
}

// storageFormats can be bound as write-only storage textures.
var storageFormats = map[format.ID]bool{
	format.RGBA8Unorm:  true,
	format.RGBA8Snorm:  true,
	format.RGBA8Uint:   true,
	format.RGBA8Sint:   true,
	format.RGBA16Float: true,
	format.R32Float:    true,
	format.R32Uint:     true,
	format.RGBA32Float: true,
	format.RGBA32Uint:  true,
	format.RGBA32Sint:  true,
}

// Support returns the format features of the device. Transfers and blits
// run on the host mirror, so every mapped format can be copied; sampling,
// filtering and attachment follow the WebGPU format tables.
func Support() format.SupportMap {
	const transfer = format.FeatureTransferSrc | format.FeatureTransferDst
	m := make(format.SupportMap, len(textureFormats))
	for id := range textureFormats {
		info := format.Get(id)
		f := format.FeatureSampled | transfer
		switch {
		case info.HasDepthOrStencil():
			f |= format.FeatureDepthStencilAttachment
		case info.IsInt():
			f |= format.FeatureColorAttachment | format.FeatureBlitSrc | format.FeatureBlitDst
		case info.Kind == format.KindFloat && info.RedBits == 32:
			// 32-bit float formats are not filterable.
			f |= format.FeatureColorAttachment | format.FeatureBlitSrc | format.FeatureBlitDst
		case info.IsSnorm():
			f |= format.FeatureBlit
		default:
			f |= format.FeatureColorAttachment | format.FeatureBlit
		}
		if storageFormats[id] {
			f |= format.FeatureStorage
		}
		m[id] = f
	}
	return m
}

// Features returns the capability set of a HAL device.
func Features() gpucore.Features {
	return gpucore.Features{
		Formats:           Support(),
		SupportsDrawUtils: true,
		MaxSamples:        1,
	}
}

// textureUsage maps image usage to HAL usage. Every texture can be
// written by WriteTexture and read back by ReadLevel.
func textureUsage(u gpucore.ImageUsage) gputypes.TextureUsage {
	out := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	if u&gpucore.UsageSampled != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u&gpucore.UsageStorage != 0 {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u&(gpucore.UsageColorAttachment|gpucore.UsageDepthStencilAttachment|gpucore.UsageInputAttachment) != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}

// layoutUsage returns the HAL usage a texture is in while its mirror is
// in layout l. Undefined maps to no usage.
func layoutUsage(l gpucore.NativeLayout) gputypes.TextureUsage {
	switch l {
	case gpucore.LayoutGeneral:
		return gputypes.TextureUsageStorageBinding
	case gpucore.LayoutColorAttachmentOptimal, gpucore.LayoutDepthStencilAttachmentOptimal,
		gpucore.LayoutPresentSrc, gpucore.LayoutSharedPresent:
		return gputypes.TextureUsageRenderAttachment
	case gpucore.LayoutDepthStencilReadOnlyOptimal, gpucore.LayoutShaderReadOnlyOptimal:
		return gputypes.TextureUsageTextureBinding
	case gpucore.LayoutTransferSrcOptimal:
		return gputypes.TextureUsageCopySrc
	case gpucore.LayoutTransferDstOptimal, gpucore.LayoutPreinitialized:
		return gputypes.TextureUsageCopyDst
	}
	return 0
}

func textureDimension(t gpucore.ImageType) gputypes.TextureDimension {
	if t == gpucore.ImageType3D {
		return gputypes.TextureDimension3D
	}
	return gputypes.TextureDimension2D
}

func viewDimension(t gpucore.ViewType) gputypes.TextureViewDimension {
	switch t {
	case gpucore.View2DArray:
		return gputypes.TextureViewDimension2DArray
	case gpucore.View3D:
		return gputypes.TextureViewDimension3D
	case gpucore.ViewCube:
		return gputypes.TextureViewDimensionCube
	case gpucore.ViewCubeArray:
		return gputypes.TextureViewDimensionCubeArray
	}
	return gputypes.TextureViewDimension2D
}

func viewAspect(a gpucore.Aspect) gputypes.TextureAspect {
	switch a {
	case gpucore.AspectDepth:
		return gputypes.TextureAspectDepthOnly
	case gpucore.AspectStencil:
		return gputypes.TextureAspectStencilOnly
	}
	return gputypes.TextureAspectAll
}
