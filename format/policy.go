package format

// channelSignature is the part of a format that cross-texture transfer
// copies care about: channel count, order and sign of 8-bit channels.
// sRGB and normalization are deliberately not part of it.
type channelSignature struct {
	bgra   bool
	r8     bool
	g8     bool
	b8     bool
	a8     bool
	signed bool
}

func signatureOf(f *Info) channelSignature {
	return channelSignature{
		bgra:   f.IsBGRA(),
		r8:     f.RedBits == 8,
		g8:     f.GreenBits == 8,
		b8:     f.BlueBits == 8,
		a8:     f.AlphaBits == 8,
		signed: f.IsSnorm() || f.IsSint(),
	}
}

// TransferCompatible reports whether texels of src can be copied
// verbatim into dst by a transfer copy between two different textures.
//
// Identical intended and actual formats are always compatible. If either
// side is emulated the copy is refused. Otherwise the 8-bit channel
// signatures must match.
func TransferCompatible(srcIntended, srcActual, dstIntended, dstActual ID) bool {
	if srcIntended == dstIntended && srcActual == dstActual {
		return true
	}
	if HasEmulatedImageFormat(srcIntended, srcActual) || HasEmulatedImageFormat(dstIntended, dstActual) {
		return false
	}
	return signatureOf(Get(srcActual)) == signatureOf(Get(dstActual))
}

// ColorspaceOverride selects the view format used for reads and writes
// independent of the storage format.
type ColorspaceOverride uint8

// Colorspace overrides.
const (
	ColorspaceDefault ColorspaceOverride = iota
	ColorspaceSRGB
	ColorspaceLinear
)

var srgbPairs = map[ID]ID{
	RGBA8Unorm: RGBA8UnormSRGB,
	BGRA8Unorm: BGRA8UnormSRGB,
}

// ApplyColorspace returns the view format for id under override. Formats
// without an sRGB counterpart are returned unchanged.
func ApplyColorspace(id ID, override ColorspaceOverride) ID {
	switch override {
	case ColorspaceSRGB:
		if s, ok := srgbPairs[id]; ok {
			return s
		}
	case ColorspaceLinear:
		for lin, s := range srgbPairs {
			if s == id {
				return lin
			}
		}
	}
	return id
}
