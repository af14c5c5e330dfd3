package format

// SupportMap is a Support backed by a per-format feature table.
type SupportMap map[ID]Feature

// HasFormatFeatures implements Support.
func (m SupportMap) HasFormatFeatures(id ID, f Feature) bool { return m[id]&f == f }

// Clone returns a copy of m that can be modified independently.
func (m SupportMap) Clone() SupportMap {
	out := make(SupportMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Without returns a copy of m with f removed from id.
func (m SupportMap) Without(id ID, f Feature) SupportMap {
	out := m.Clone()
	out[id] &^= f
	return out
}

// DefaultSupport describes a typical desktop device: 3-channel and
// luminance formats are not stored natively, BC1 is sampleable, combined
// depth/stencil formats are attachable but not blittable, and YUV images
// can be sampled but not rendered to.
func DefaultSupport() SupportMap {
	const (
		transfer = FeatureTransferSrc | FeatureTransferDst
		color    = FeatureSampled | FeatureColorAttachment | transfer | FeatureBlit
		storage  = color | FeatureStorage
		integer  = FeatureSampled | FeatureColorAttachment | transfer | FeatureBlitSrc | FeatureBlitDst | FeatureStorage
		depth    = FeatureSampled | FeatureDepthStencilAttachment | transfer
	)
	return SupportMap{
		R8Unorm:        storage,
		R8Snorm:        color,
		RG8Unorm:       storage,
		RGBA8Unorm:     storage,
		RGBA8UnormSRGB: color,
		RGBA8Snorm:     FeatureSampled | transfer | FeatureBlit | FeatureStorage,
		RGBA8Uint:      integer,
		RGBA8Sint:      integer,
		BGRA8Unorm:     color,
		BGRA8UnormSRGB: color,
		RGBA16Float:    storage,
		R32Float:       storage,
		R32Uint:        integer,
		RGBA32Float:    FeatureSampled | FeatureColorAttachment | transfer | FeatureBlitSrc | FeatureBlitDst | FeatureStorage,
		RGBA32Uint:     integer,
		RGBA32Sint:     integer,
		D16Unorm:       depth | FeatureBlitSrc | FeatureBlitDst,
		D24UnormS8Uint: depth,
		D32Float:       depth | FeatureBlitSrc | FeatureBlitDst,
		D32FloatS8Uint: depth,
		S8Uint:         depth,
		BC1RGBAUnorm:   FeatureSampled | transfer | FeatureLinearFilter,
		YUV444Unorm:    FeatureSampled | transfer | FeatureLinearFilter,
	}
}
