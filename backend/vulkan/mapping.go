package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/gogpu/glvk/gpucore"
)

var layouts = [...]vk.ImageLayout{
	gpucore.LayoutUndefined:                     vk.ImageLayoutUndefined,
	gpucore.LayoutGeneral:                       vk.ImageLayoutGeneral,
	gpucore.LayoutColorAttachmentOptimal:        vk.ImageLayoutColorAttachmentOptimal,
	gpucore.LayoutDepthStencilAttachmentOptimal: vk.ImageLayoutDepthStencilAttachmentOptimal,
	gpucore.LayoutDepthStencilReadOnlyOptimal:   vk.ImageLayoutDepthStencilReadOnlyOptimal,
	gpucore.LayoutShaderReadOnlyOptimal:         vk.ImageLayoutShaderReadOnlyOptimal,
	gpucore.LayoutTransferSrcOptimal:            vk.ImageLayoutTransferSrcOptimal,
	gpucore.LayoutTransferDstOptimal:            vk.ImageLayoutTransferDstOptimal,
	gpucore.LayoutPreinitialized:                vk.ImageLayoutPreinitialized,
	gpucore.LayoutPresentSrc:                    vk.ImageLayoutPresentSrc,
	gpucore.LayoutSharedPresent:                 vk.ImageLayoutSharedPresent,
}

// Layout maps a native layout to its VkImageLayout. Unknown layouts map
// to General.
func Layout(l gpucore.NativeLayout) vk.ImageLayout {
	if int(l) < len(layouts) {
		return layouts[l]
	}
	return vk.ImageLayoutGeneral
}

type stageBit struct {
	from gpucore.PipelineStage
	to   vk.PipelineStageFlagBits
}

var stageBits = []stageBit{
	{gpucore.StageTopOfPipe, vk.PipelineStageTopOfPipeBit},
	{gpucore.StageVertexShader, vk.PipelineStageVertexShaderBit},
	{gpucore.StageFragmentShader, vk.PipelineStageFragmentShaderBit},
	{gpucore.StageEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
	{gpucore.StageLateFragmentTests, vk.PipelineStageLateFragmentTestsBit},
	{gpucore.StageColorAttachmentOutput, vk.PipelineStageColorAttachmentOutputBit},
	{gpucore.StageComputeShader, vk.PipelineStageComputeShaderBit},
	{gpucore.StageTransfer, vk.PipelineStageTransferBit},
	{gpucore.StageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
	{gpucore.StageHost, vk.PipelineStageHostBit},
	{gpucore.StageAllCommands, vk.PipelineStageAllCommandsBit},
}

// Stages maps a stage mask. An empty source mask is not allowed by
// Vulkan 1.0, so StageNone maps to top of pipe.
func Stages(s gpucore.PipelineStage) vk.PipelineStageFlags {
	if s == gpucore.StageNone {
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	var out vk.PipelineStageFlags
	for _, b := range stageBits {
		if s&b.from != 0 {
			out |= vk.PipelineStageFlags(b.to)
		}
	}
	return out
}

type accessBit struct {
	from gpucore.AccessMask
	to   vk.AccessFlagBits
}

var accessBits = []accessBit{
	{gpucore.AccessShaderRead, vk.AccessShaderReadBit},
	{gpucore.AccessShaderWrite, vk.AccessShaderWriteBit},
	{gpucore.AccessInputAttachmentRead, vk.AccessInputAttachmentReadBit},
	{gpucore.AccessColorAttachmentRead, vk.AccessColorAttachmentReadBit},
	{gpucore.AccessColorAttachmentWrite, vk.AccessColorAttachmentWriteBit},
	{gpucore.AccessDepthStencilAttachmentRead, vk.AccessDepthStencilAttachmentReadBit},
	{gpucore.AccessDepthStencilAttachmentWrite, vk.AccessDepthStencilAttachmentWriteBit},
	{gpucore.AccessTransferRead, vk.AccessTransferReadBit},
	{gpucore.AccessTransferWrite, vk.AccessTransferWriteBit},
	{gpucore.AccessHostRead, vk.AccessHostReadBit},
	{gpucore.AccessHostWrite, vk.AccessHostWriteBit},
	{gpucore.AccessMemoryRead, vk.AccessMemoryReadBit},
	{gpucore.AccessMemoryWrite, vk.AccessMemoryWriteBit},
}

// Access maps an access mask.
func Access(a gpucore.AccessMask) vk.AccessFlags {
	var out vk.AccessFlags
	for _, b := range accessBits {
		if a&b.from != 0 {
			out |= vk.AccessFlags(b.to)
		}
	}
	return out
}

// AspectMask maps image aspects.
func AspectMask(a gpucore.Aspect) vk.ImageAspectFlags {
	var out vk.ImageAspectFlags
	if a&gpucore.AspectColor != 0 {
		out |= vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	if a&gpucore.AspectDepth != 0 {
		out |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	if a&gpucore.AspectStencil != 0 {
		out |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return out
}

// Queue family sentinels as defined by the Vulkan headers.
const (
	queueFamilyIgnored  = ^uint32(0)
	queueFamilyExternal = ^uint32(0) - 1
	queueFamilyForeign  = ^uint32(0) - 2
)

// QueueFamily maps a queue family index.
func QueueFamily(q gpucore.QueueFamily) uint32 {
	switch q {
	case gpucore.QueueFamilyIgnored:
		return queueFamilyIgnored
	case gpucore.QueueFamilyExternal:
		return queueFamilyExternal
	case gpucore.QueueFamilyForeign:
		return queueFamilyForeign
	}
	return uint32(q)
}

// Filter maps a blit filter.
func Filter(f gpucore.Filter) vk.Filter {
	if f == gpucore.FilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

// Usage maps image usage flags.
func Usage(u gpucore.ImageUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u&gpucore.UsageTransferSrc != 0 {
		out |= vk.ImageUsageTransferSrcBit
	}
	if u&gpucore.UsageTransferDst != 0 {
		out |= vk.ImageUsageTransferDstBit
	}
	if u&gpucore.UsageSampled != 0 {
		out |= vk.ImageUsageSampledBit
	}
	if u&gpucore.UsageStorage != 0 {
		out |= vk.ImageUsageStorageBit
	}
	if u&gpucore.UsageColorAttachment != 0 {
		out |= vk.ImageUsageColorAttachmentBit
	}
	if u&gpucore.UsageDepthStencilAttachment != 0 {
		out |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&gpucore.UsageInputAttachment != 0 {
		out |= vk.ImageUsageInputAttachmentBit
	}
	return vk.ImageUsageFlags(out)
}

func subresourceRange(r gpucore.SubresourceRange) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     AspectMask(r.Aspect),
		BaseMipLevel:   r.BaseLevel,
		LevelCount:     r.LevelCount,
		BaseArrayLayer: r.BaseLayer,
		LayerCount:     r.LayerCount,
	}
}

func subresourceLayers(a gpucore.Aspect, level, layer, count uint32) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     AspectMask(a),
		MipLevel:       level,
		BaseArrayLayer: layer,
		LayerCount:     count,
	}
}

func offset(o gpucore.Offset3D) vk.Offset3D {
	return vk.Offset3D{X: o.X, Y: o.Y, Z: o.Z}
}

func extent(e gpucore.Extent3D) vk.Extent3D {
	return vk.Extent3D{Width: e.Width, Height: e.Height, Depth: e.Depth}
}
