package format

// Feature is a bitmask of per-format device capabilities.
type Feature uint32

// Format features.
const (
	FeatureSampled Feature = 1 << iota
	FeatureStorage
	FeatureColorAttachment
	FeatureDepthStencilAttachment
	FeatureTransferSrc
	FeatureTransferDst
	FeatureBlitSrc
	FeatureBlitDst
	FeatureLinearFilter

	// FeatureBlit is what blit-based mipmap generation needs.
	FeatureBlit = FeatureBlitSrc | FeatureBlitDst | FeatureLinearFilter
)

// Support reports device capabilities for formats.
type Support interface {
	HasFormatFeatures(id ID, f Feature) bool
}

// Access is the kind of use a texture's image must support.
type Access uint8

// Required image access.
const (
	AccessSampleOnly Access = iota
	AccessRenderable
)

// Swz selects one source component for a destination component.
type Swz uint8

// Component selectors.
const (
	SwzR Swz = iota
	SwzG
	SwzB
	SwzA
	SwzZero
	SwzOne
)

// Swizzle maps four destination components.
type Swizzle [4]Swz

// Identity is the no-op swizzle.
var Identity = Swizzle{SwzR, SwzG, SwzB, SwzA}

// Apply returns c permuted by s.
func (s Swizzle) Apply(c Color) Color {
	var out Color
	for i, sel := range s {
		switch sel {
		case SwzZero:
			out[i] = 0
		case SwzOne:
			out[i] = 1
		default:
			out[i] = c[sel]
		}
	}
	return out
}

// Compose returns the swizzle equivalent to applying s, then t.
func (s Swizzle) Compose(t Swizzle) Swizzle {
	var out Swizzle
	for i, sel := range t {
		if sel >= SwzZero {
			out[i] = sel
			continue
		}
		out[i] = s[sel]
	}
	return out
}

// Fallback is one storage choice for an intended format.
type Fallback struct {
	Intended ID
	Actual   ID

	// Store gives, for each component of Actual, the logical component of
	// Intended it holds. SwzZero/SwzOne mark emulated components.
	Store Swizzle
	// Load recovers the logical components from decoded Actual texels.
	Load Swizzle

	// Decompress converts compressed Intended data into Actual texels when
	// the compressed format itself is not stored.
	Decompress func(dst []byte, dstRowPitch int, src []byte, width, height int)
}

// IsEmulated reports whether actual differs from intended.
func (fb Fallback) IsEmulated() bool { return fb.Intended != fb.Actual }

// EmulatedMask returns the components of Actual not backed by client
// data. The values they hold come from EmulatedDefault.
func (fb Fallback) EmulatedMask() uint8 {
	if !fb.IsEmulated() {
		return 0
	}
	actual := Get(fb.Actual)
	var mask uint8
	for i, sel := range fb.Store {
		if sel >= SwzZero && actual.HasComponent(i) {
			mask |= 1 << i
		}
	}
	return mask
}

// EmulatedDefault is the value emulated components are cleared to:
// opaque alpha for color, zero stencil for depth.
func (fb Fallback) EmulatedDefault() Color {
	var c Color
	for i, sel := range fb.Store {
		if sel == SwzOne {
			c[i] = 1
		}
	}
	return c
}

// StoreColor maps a logical texel onto the actual format's components.
func (fb Fallback) StoreColor(c Color) Color { return fb.Store.Apply(c) }

// LoadColor maps decoded actual components back to the logical texel.
func (fb Fallback) LoadColor(c Color) Color { return fb.Load.Apply(c) }

// Table resolves intended formats to storage candidates.
type Table struct {
	candidates map[ID][]Fallback
}

// DefaultTable returns the built-in fallback table.
func DefaultTable() *Table {
	t := &Table{candidates: make(map[ID][]Fallback)}
	rgbPad := Fallback{Store: Swizzle{SwzR, SwzG, SwzB, SwzOne}, Load: Swizzle{SwzR, SwzG, SwzB, SwzOne}}
	depthXStencil := Fallback{Store: Swizzle{SwzR, SwzZero, SwzZero, SwzZero}, Load: Swizzle{SwzR, SwzZero, SwzZero, SwzZero}}

	t.add(RGB8Unorm, identity(RGB8Unorm), with(rgbPad, RGB8Unorm, RGBA8Unorm))
	t.add(RGB16Float, identity(RGB16Float), with(rgbPad, RGB16Float, RGBA16Float))
	t.add(RGB32Float, identity(RGB32Float), with(rgbPad, RGB32Float, RGBA32Float))
	t.add(RGB32Uint, identity(RGB32Uint), with(rgbPad, RGB32Uint, RGBA32Uint))
	t.add(RGB32Sint, identity(RGB32Sint), with(rgbPad, RGB32Sint, RGBA32Sint))

	t.add(L8Unorm, Fallback{Intended: L8Unorm, Actual: R8Unorm,
		Store: Swizzle{SwzR, SwzZero, SwzZero, SwzZero}, Load: Swizzle{SwzR, SwzR, SwzR, SwzOne}})
	t.add(A8Unorm, Fallback{Intended: A8Unorm, Actual: R8Unorm,
		Store: Swizzle{SwzA, SwzZero, SwzZero, SwzZero}, Load: Swizzle{SwzZero, SwzZero, SwzZero, SwzR}})
	t.add(L8A8Unorm, Fallback{Intended: L8A8Unorm, Actual: RG8Unorm,
		Store: Swizzle{SwzR, SwzA, SwzZero, SwzZero}, Load: Swizzle{SwzR, SwzR, SwzR, SwzG}})

	t.add(D24UnormX8, identity(D24UnormX8), with(depthXStencil, D24UnormX8, D24UnormS8Uint),
		with(depthXStencil, D24UnormX8, D32FloatS8Uint))
	t.add(D24UnormS8Uint, identity(D24UnormS8Uint), Fallback{Intended: D24UnormS8Uint, Actual: D32FloatS8Uint,
		Store: Identity, Load: Identity})

	t.add(BC1RGBAUnorm, identity(BC1RGBAUnorm), Fallback{Intended: BC1RGBAUnorm, Actual: RGBA8Unorm,
		Store: Identity, Load: Identity, Decompress: DecompressBC1})
	return t
}

func identity(id ID) Fallback {
	return Fallback{Intended: id, Actual: id, Store: Identity, Load: Identity}
}

func with(fb Fallback, intended, actual ID) Fallback {
	fb.Intended, fb.Actual = intended, actual
	return fb
}

func (t *Table) add(id ID, fbs ...Fallback) { t.candidates[id] = fbs }

// Candidates returns the ordered storage candidates for id.
func (t *Table) Candidates(id ID) []Fallback {
	if fbs, ok := t.candidates[id]; ok {
		return fbs
	}
	return []Fallback{identity(id)}
}

// RequiredFeatures returns the features a storage format must have to
// back an image of format id with the given access.
func RequiredFeatures(id ID, access Access) Feature {
	need := FeatureSampled | FeatureTransferSrc | FeatureTransferDst
	if access == AccessRenderable {
		if Get(id).HasDepthOrStencil() {
			need |= FeatureDepthStencilAttachment
		} else {
			need |= FeatureColorAttachment
		}
	}
	return need
}

// Resolve picks the first candidate whose actual format the device
// supports for access. When nothing matches, the last candidate is
// returned so the caller can still report its format.
func (t *Table) Resolve(intended ID, access Access, s Support) Fallback {
	fbs := t.Candidates(intended)
	for _, fb := range fbs {
		if s.HasFormatFeatures(fb.Actual, RequiredFeatures(fb.Actual, access)) {
			return fb
		}
	}
	return fbs[len(fbs)-1]
}

// HasEmulatedImageFormat reports whether intended is stored as a
// different actual format.
func HasEmulatedImageFormat(intended, actual ID) bool { return intended != actual }

// NeedsRGBAEmulation reports whether a 3-channel 32-bit intended format
// is padded to 4 channels on this device.
func (t *Table) NeedsRGBAEmulation(intended ID, s Support) bool {
	switch intended {
	case RGB32Float, RGB32Uint, RGB32Sint:
		return t.Resolve(intended, AccessSampleOnly, s).Actual != intended
	}
	return false
}
