package gpucore

// PipelineStage is a bitmask of pipeline stages, in the order an explicit
// API executes them.
type PipelineStage uint32

// Pipeline stages.
const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageVertexShader
	StageFragmentShader
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageComputeShader
	StageTransfer
	StageBottomOfPipe
	StageHost
	StageAllCommands

	StageNone PipelineStage = 0

	// StageAllGraphicsShaders covers every graphics shader stage.
	StageAllGraphicsShaders = StageVertexShader | StageFragmentShader
	// StageAllShaders covers graphics and compute shaders.
	StageAllShaders = StageAllGraphicsShaders | StageComputeShader
)

// AccessMask is a bitmask of memory access types.
type AccessMask uint32

// Access types.
const (
	AccessShaderRead AccessMask = 1 << iota
	AccessShaderWrite
	AccessInputAttachmentRead
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
	AccessTransferRead
	AccessTransferWrite
	AccessHostRead
	AccessHostWrite
	AccessMemoryRead
	AccessMemoryWrite

	AccessNone AccessMask = 0
)

// NativeLayout is the layout an image is physically in.
type NativeLayout uint8

// Native image layouts.
const (
	LayoutUndefined NativeLayout = iota
	LayoutGeneral
	LayoutColorAttachmentOptimal
	LayoutDepthStencilAttachmentOptimal
	LayoutDepthStencilReadOnlyOptimal
	LayoutShaderReadOnlyOptimal
	LayoutTransferSrcOptimal
	LayoutTransferDstOptimal
	LayoutPreinitialized
	LayoutPresentSrc
	LayoutSharedPresent
)

var nativeLayoutNames = [...]string{
	LayoutUndefined:                     "Undefined",
	LayoutGeneral:                       "General",
	LayoutColorAttachmentOptimal:        "ColorAttachmentOptimal",
	LayoutDepthStencilAttachmentOptimal: "DepthStencilAttachmentOptimal",
	LayoutDepthStencilReadOnlyOptimal:   "DepthStencilReadOnlyOptimal",
	LayoutShaderReadOnlyOptimal:         "ShaderReadOnlyOptimal",
	LayoutTransferSrcOptimal:            "TransferSrcOptimal",
	LayoutTransferDstOptimal:            "TransferDstOptimal",
	LayoutPreinitialized:                "Preinitialized",
	LayoutPresentSrc:                    "PresentSrc",
	LayoutSharedPresent:                 "SharedPresent",
}

// String returns the layout name.
func (l NativeLayout) String() string {
	if int(l) < len(nativeLayoutNames) {
		return nativeLayoutNames[l]
	}
	return "Unknown"
}

// QueueFamily identifies the queue family owning an image.
type QueueFamily uint32

// Special queue families.
const (
	QueueFamilyIgnored  QueueFamily = ^QueueFamily(0)
	QueueFamilyExternal QueueFamily = ^QueueFamily(0) - 1
	QueueFamilyForeign  QueueFamily = ^QueueFamily(0) - 2
)

// IsExternal reports whether q is outside this device's queues.
func (q QueueFamily) IsExternal() bool {
	return q == QueueFamilyExternal || q == QueueFamilyForeign
}

// ImageBarrier is one image memory barrier. Range is in native levels.
type ImageBarrier struct {
	Image          ImageHandle
	SrcAccess      AccessMask
	DstAccess      AccessMask
	OldLayout      NativeLayout
	NewLayout      NativeLayout
	SrcQueueFamily QueueFamily
	DstQueueFamily QueueFamily
	Range          SubresourceRange
}
