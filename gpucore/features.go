package gpucore

import "github.com/gogpu/glvk/format"

// Features is the device capability set. It is a value: every decision
// that depends on device capabilities takes it as input so tests can
// substitute their own.
type Features struct {
	// Formats reports per-format capabilities.
	Formats format.Support

	// SupportsMultisampledRenderToSingleSampled lets single-sampled images
	// be rendered with implicit multisampling, with no companion image.
	SupportsMultisampledRenderToSingleSampled bool

	// SupportsYUVColorAttachment lets YUV images be bound as color
	// attachments directly.
	SupportsYUVColorAttachment bool

	// ZeroInitializeAllocations clears every new image before first use.
	ZeroInitializeAllocations bool

	// GenerateMipmapWithCompute enables the compute mipmap path.
	GenerateMipmapWithCompute bool

	// MaxGenerateMipmapLevels bounds the destination levels of one compute
	// mipmap dispatch.
	MaxGenerateMipmapLevels uint32

	// SupportsImageFormatList allows mutable-format images to declare their
	// view formats, so sRGB views need no view recreation.
	SupportsImageFormatList bool

	// SupportsDrawUtils reports that Utils can run draw-based copies and
	// clears.
	SupportsDrawUtils bool

	// MaxSamples is the largest supported sample count.
	MaxSamples uint32
}

// DefaultFeatures returns the features of a capable desktop device using
// the default format support.
func DefaultFeatures() Features {
	return Features{
		Formats:                   format.DefaultSupport(),
		GenerateMipmapWithCompute: true,
		MaxGenerateMipmapLevels:   6,
		SupportsImageFormatList:   true,
		SupportsDrawUtils:         true,
		MaxSamples:                8,
	}
}

// HasFormatFeatures reports whether id supports every feature in f.
func (f Features) HasFormatFeatures(id format.ID, want format.Feature) bool {
	return f.Formats != nil && f.Formats.HasFormatFeatures(id, want)
}
