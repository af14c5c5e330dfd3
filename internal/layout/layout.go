// Package layout defines the image layouts the texture engine tracks and
// the barrier each transition between them needs.
//
// An ImageLayout bundles the stages that access the image, the memory
// access masks of those stages and the native layout the image must be in.
// Transitions are always computed from the recorded layout to the requested
// one.
package layout

import "github.com/gogpu/glvk/gpucore"

// ImageLayout is a tracked image state.
type ImageLayout uint8

// Image layouts.
const (
	Undefined ImageLayout = iota
	ColorWrite
	DepthStencilWrite
	DepthStencilReadOnly
	FragmentShaderReadOnly
	ComputeShaderReadOnly
	AllGraphicsShadersReadOnly
	FragmentShaderWrite
	ComputeShaderWrite
	TransferSrc
	TransferDst
	TransferSrcDst
	Present
	SharedPresent
	ExternalPreInitialized
	ExternalShadersReadOnly
	ExternalShadersWrite
	// HostCopy is used only by host image copies.
	HostCopy
	// ForeignAccess marks an image owned by a foreign queue. It must be
	// acquired before use.
	ForeignAccess

	count
)

// Data describes one layout.
type Data struct {
	Name string
	// Layout is the native layout the image is in.
	Layout gpucore.NativeLayout
	// DstStage and DstAccess wait for previous work when transitioning
	// into this layout.
	DstStage  gpucore.PipelineStage
	DstAccess gpucore.AccessMask
	// SrcStage and SrcAccess are made available when transitioning out.
	SrcStage  gpucore.PipelineStage
	SrcAccess gpucore.AccessMask
	// ReadOnly layouts never write the image.
	ReadOnly bool
}

var table = [count]Data{
	Undefined: {
		Name:     "Undefined",
		Layout:   gpucore.LayoutUndefined,
		DstStage: gpucore.StageBottomOfPipe,
		SrcStage: gpucore.StageTopOfPipe,
		ReadOnly: true,
	},
	ColorWrite: {
		Name:      "ColorWrite",
		Layout:    gpucore.LayoutColorAttachmentOptimal,
		DstStage:  gpucore.StageColorAttachmentOutput,
		DstAccess: gpucore.AccessColorAttachmentRead | gpucore.AccessColorAttachmentWrite,
		SrcStage:  gpucore.StageColorAttachmentOutput,
		SrcAccess: gpucore.AccessColorAttachmentWrite,
	},
	DepthStencilWrite: {
		Name:      "DepthStencilWrite",
		Layout:    gpucore.LayoutDepthStencilAttachmentOptimal,
		DstStage:  gpucore.StageEarlyFragmentTests | gpucore.StageLateFragmentTests,
		DstAccess: gpucore.AccessDepthStencilAttachmentRead | gpucore.AccessDepthStencilAttachmentWrite,
		SrcStage:  gpucore.StageEarlyFragmentTests | gpucore.StageLateFragmentTests,
		SrcAccess: gpucore.AccessDepthStencilAttachmentWrite,
	},
	DepthStencilReadOnly: {
		Name:      "DepthStencilReadOnly",
		Layout:    gpucore.LayoutDepthStencilReadOnlyOptimal,
		DstStage:  gpucore.StageEarlyFragmentTests | gpucore.StageLateFragmentTests,
		DstAccess: gpucore.AccessDepthStencilAttachmentRead,
		SrcStage:  gpucore.StageEarlyFragmentTests | gpucore.StageLateFragmentTests,
		ReadOnly:  true,
	},
	FragmentShaderReadOnly: {
		Name:      "FragmentShaderReadOnly",
		Layout:    gpucore.LayoutShaderReadOnlyOptimal,
		DstStage:  gpucore.StageFragmentShader,
		DstAccess: gpucore.AccessShaderRead,
		SrcStage:  gpucore.StageFragmentShader,
		ReadOnly:  true,
	},
	ComputeShaderReadOnly: {
		Name:      "ComputeShaderReadOnly",
		Layout:    gpucore.LayoutShaderReadOnlyOptimal,
		DstStage:  gpucore.StageComputeShader,
		DstAccess: gpucore.AccessShaderRead,
		SrcStage:  gpucore.StageComputeShader,
		ReadOnly:  true,
	},
	AllGraphicsShadersReadOnly: {
		Name:      "AllGraphicsShadersReadOnly",
		Layout:    gpucore.LayoutShaderReadOnlyOptimal,
		DstStage:  gpucore.StageAllGraphicsShaders,
		DstAccess: gpucore.AccessShaderRead,
		SrcStage:  gpucore.StageAllGraphicsShaders,
		ReadOnly:  true,
	},
	FragmentShaderWrite: {
		Name:      "FragmentShaderWrite",
		Layout:    gpucore.LayoutGeneral,
		DstStage:  gpucore.StageFragmentShader,
		DstAccess: gpucore.AccessShaderRead | gpucore.AccessShaderWrite,
		SrcStage:  gpucore.StageFragmentShader,
		SrcAccess: gpucore.AccessShaderWrite,
	},
	ComputeShaderWrite: {
		Name:      "ComputeShaderWrite",
		Layout:    gpucore.LayoutGeneral,
		DstStage:  gpucore.StageComputeShader,
		DstAccess: gpucore.AccessShaderRead | gpucore.AccessShaderWrite,
		SrcStage:  gpucore.StageComputeShader,
		SrcAccess: gpucore.AccessShaderWrite,
	},
	TransferSrc: {
		Name:      "TransferSrc",
		Layout:    gpucore.LayoutTransferSrcOptimal,
		DstStage:  gpucore.StageTransfer,
		DstAccess: gpucore.AccessTransferRead,
		SrcStage:  gpucore.StageTransfer,
		ReadOnly:  true,
	},
	TransferDst: {
		Name:      "TransferDst",
		Layout:    gpucore.LayoutTransferDstOptimal,
		DstStage:  gpucore.StageTransfer,
		DstAccess: gpucore.AccessTransferWrite,
		SrcStage:  gpucore.StageTransfer,
		SrcAccess: gpucore.AccessTransferWrite,
	},
	TransferSrcDst: {
		Name:      "TransferSrcDst",
		Layout:    gpucore.LayoutGeneral,
		DstStage:  gpucore.StageTransfer,
		DstAccess: gpucore.AccessTransferRead | gpucore.AccessTransferWrite,
		SrcStage:  gpucore.StageTransfer,
		SrcAccess: gpucore.AccessTransferWrite,
	},
	Present: {
		Name:     "Present",
		Layout:   gpucore.LayoutPresentSrc,
		DstStage: gpucore.StageBottomOfPipe,
		SrcStage: gpucore.StageBottomOfPipe,
		ReadOnly: true,
	},
	SharedPresent: {
		Name:      "SharedPresent",
		Layout:    gpucore.LayoutSharedPresent,
		DstStage:  gpucore.StageBottomOfPipe,
		DstAccess: gpucore.AccessMemoryRead,
		SrcStage:  gpucore.StageBottomOfPipe,
		SrcAccess: gpucore.AccessMemoryWrite,
	},
	ExternalPreInitialized: {
		Name:      "ExternalPreInitialized",
		Layout:    gpucore.LayoutPreinitialized,
		DstStage:  gpucore.StageHost | gpucore.StageAllCommands,
		DstAccess: gpucore.AccessHostRead | gpucore.AccessHostWrite | gpucore.AccessMemoryRead | gpucore.AccessMemoryWrite,
		SrcStage:  gpucore.StageHost,
		SrcAccess: gpucore.AccessHostWrite,
	},
	ExternalShadersReadOnly: {
		Name:      "ExternalShadersReadOnly",
		Layout:    gpucore.LayoutShaderReadOnlyOptimal,
		DstStage:  gpucore.StageTopOfPipe,
		DstAccess: gpucore.AccessShaderRead,
		SrcStage:  gpucore.StageAllShaders,
		ReadOnly:  true,
	},
	ExternalShadersWrite: {
		Name:      "ExternalShadersWrite",
		Layout:    gpucore.LayoutGeneral,
		DstStage:  gpucore.StageTopOfPipe,
		DstAccess: gpucore.AccessShaderWrite,
		SrcStage:  gpucore.StageAllShaders,
		SrcAccess: gpucore.AccessShaderWrite,
	},
	HostCopy: {
		Name:      "HostCopy",
		Layout:    gpucore.LayoutGeneral,
		DstStage:  gpucore.StageHost,
		DstAccess: gpucore.AccessHostRead | gpucore.AccessHostWrite,
		SrcStage:  gpucore.StageHost,
		SrcAccess: gpucore.AccessHostWrite,
	},
	ForeignAccess: {
		Name:      "ForeignAccess",
		Layout:    gpucore.LayoutGeneral,
		DstStage:  gpucore.StageAllCommands,
		DstAccess: gpucore.AccessMemoryRead | gpucore.AccessMemoryWrite,
		SrcStage:  gpucore.StageAllCommands,
		SrcAccess: gpucore.AccessMemoryWrite,
	},
}

// Get returns the data for l.
func (l ImageLayout) Get() Data { return table[l] }

// String returns the layout name.
func (l ImageLayout) String() string {
	if l < count {
		return table[l].Name
	}
	return "Unknown"
}

// Native returns the native layout for l.
func (l ImageLayout) Native() gpucore.NativeLayout { return table[l].Layout }

// ReadOnly reports whether l never writes the image.
func (l ImageLayout) ReadOnly() bool { return table[l].ReadOnly }

// Barrier returns the stages and the image barrier of a transition from
// one layout to another. readStages are the extra stages that read the image since
// the last barrier and must also be waited on.
func Barrier(from, to ImageLayout, readStages gpucore.PipelineStage) (src, dst gpucore.PipelineStage, b gpucore.ImageBarrier) {
	od, nd := table[from], table[to]
	b = gpucore.ImageBarrier{
		SrcAccess:      od.SrcAccess,
		DstAccess:      nd.DstAccess,
		OldLayout:      od.Layout,
		NewLayout:      nd.Layout,
		SrcQueueFamily: gpucore.QueueFamilyIgnored,
		DstQueueFamily: gpucore.QueueFamilyIgnored,
	}
	return od.SrcStage | readStages, nd.DstStage, b
}

// CanShareReadStages reports whether a read in layout to can follow reads
// in layout from without a barrier: both are read-only and share the
// native layout.
func CanShareReadStages(from, to ImageLayout) bool {
	od, nd := table[from], table[to]
	return od.ReadOnly && nd.ReadOnly && od.Layout == nd.Layout && from != Undefined
}

// ForAttachment returns the write layout for an attachment of a format with
// the given aspects.
func ForAttachment(aspect gpucore.Aspect) ImageLayout {
	if aspect&(gpucore.AspectDepth|gpucore.AspectStencil) != 0 {
		return DepthStencilWrite
	}
	return ColorWrite
}
