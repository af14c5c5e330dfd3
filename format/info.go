package format

// ID identifies a pixel format.
type ID uint16

// Known formats. The zero value None is never a valid storage format.
const (
	None ID = iota

	R8Unorm
	R8Snorm
	RG8Unorm
	RGB8Unorm
	RGBA8Unorm
	RGBA8UnormSRGB
	RGBA8Snorm
	RGBA8Uint
	RGBA8Sint
	BGRA8Unorm
	BGRA8UnormSRGB

	// Luminance/alpha formats exist only as intended formats.
	L8Unorm
	A8Unorm
	L8A8Unorm

	RGB16Float
	RGBA16Float

	R32Float
	R32Uint
	RGB32Float
	RGBA32Float
	RGB32Uint
	RGBA32Uint
	RGB32Sint
	RGBA32Sint

	D16Unorm
	D24UnormX8
	D24UnormS8Uint
	D32Float
	D32FloatS8Uint
	S8Uint

	BC1RGBAUnorm

	// YUV444Unorm stores 8-bit Y, Cb, Cr per texel.
	YUV444Unorm

	formatCount
)

// Channel names one stored component of a texel.
type Channel uint8

// Stored components.
const (
	ChannelR Channel = iota + 1
	ChannelG
	ChannelB
	ChannelA
	ChannelL
	ChannelD
	ChannelS
	ChannelX // padding
	ChannelY
	ChannelCb
	ChannelCr
)

// Kind is the numeric interpretation of a format's components.
type Kind uint8

// Component kinds.
const (
	KindUnorm Kind = iota + 1
	KindSnorm
	KindUint
	KindSint
	KindFloat
)

// ChannelBits is one byte-aligned component in memory order.
type ChannelBits struct {
	Channel Channel
	Bits    int
	// Kind overrides the format kind for this channel (stencil in a
	// float depth format).
	Kind Kind
}

// Info describes the memory layout of a format.
type Info struct {
	ID         ID
	Name       string
	PixelBytes int // bytes per texel, or per block for compressed formats
	Channels   []ChannelBits
	Kind       Kind
	SRGB       bool
	Compressed bool
	BlockW     int
	BlockH     int
	YUV        bool

	RedBits, GreenBits, BlueBits, AlphaBits int
	LuminanceBits, DepthBits, StencilBits   int
	bgra                                    bool
}

func ch(c Channel, bits int) ChannelBits { return ChannelBits{Channel: c, Bits: bits} }

var infoTable = [formatCount]Info{
	None:           {Name: "NONE"},
	R8Unorm:        {Name: "R8_UNORM", PixelBytes: 1, Kind: KindUnorm, Channels: []ChannelBits{ch(ChannelR, 8)}},
	R8Snorm:        {Name: "R8_SNORM", PixelBytes: 1, Kind: KindSnorm, Channels: []ChannelBits{ch(ChannelR, 8)}},
	RG8Unorm:       {Name: "R8G8_UNORM", PixelBytes: 2, Kind: KindUnorm, Channels: []ChannelBits{ch(ChannelR, 8), ch(ChannelG, 8)}},
	RGB8Unorm:      {Name: "R8G8B8_UNORM", PixelBytes: 3, Kind: KindUnorm, Channels: []ChannelBits{ch(ChannelR, 8), ch(ChannelG, 8), ch(ChannelB, 8)}},
	RGBA8Unorm:     {Name: "R8G8B8A8_UNORM", PixelBytes: 4, Kind: KindUnorm, Channels: rgba(8)},
	RGBA8UnormSRGB: {Name: "R8G8B8A8_UNORM_SRGB", PixelBytes: 4, Kind: KindUnorm, SRGB: true, Channels: rgba(8)},
	RGBA8Snorm:     {Name: "R8G8B8A8_SNORM", PixelBytes: 4, Kind: KindSnorm, Channels: rgba(8)},
	RGBA8Uint:      {Name: "R8G8B8A8_UINT", PixelBytes: 4, Kind: KindUint, Channels: rgba(8)},
	RGBA8Sint:      {Name: "R8G8B8A8_SINT", PixelBytes: 4, Kind: KindSint, Channels: rgba(8)},
	BGRA8Unorm:     {Name: "B8G8R8A8_UNORM", PixelBytes: 4, Kind: KindUnorm, Channels: bgra(8)},
	BGRA8UnormSRGB: {Name: "B8G8R8A8_UNORM_SRGB", PixelBytes: 4, Kind: KindUnorm, SRGB: true, Channels: bgra(8)},

	L8Unorm:   {Name: "L8_UNORM", PixelBytes: 1, Kind: KindUnorm, Channels: []ChannelBits{ch(ChannelL, 8)}},
	A8Unorm:   {Name: "A8_UNORM", PixelBytes: 1, Kind: KindUnorm, Channels: []ChannelBits{ch(ChannelA, 8)}},
	L8A8Unorm: {Name: "L8A8_UNORM", PixelBytes: 2, Kind: KindUnorm, Channels: []ChannelBits{ch(ChannelL, 8), ch(ChannelA, 8)}},

	RGB16Float:  {Name: "R16G16B16_FLOAT", PixelBytes: 6, Kind: KindFloat, Channels: []ChannelBits{ch(ChannelR, 16), ch(ChannelG, 16), ch(ChannelB, 16)}},
	RGBA16Float: {Name: "R16G16B16A16_FLOAT", PixelBytes: 8, Kind: KindFloat, Channels: rgba(16)},

	R32Float:    {Name: "R32_FLOAT", PixelBytes: 4, Kind: KindFloat, Channels: []ChannelBits{ch(ChannelR, 32)}},
	R32Uint:     {Name: "R32_UINT", PixelBytes: 4, Kind: KindUint, Channels: []ChannelBits{ch(ChannelR, 32)}},
	RGB32Float:  {Name: "R32G32B32_FLOAT", PixelBytes: 12, Kind: KindFloat, Channels: rgb(32)},
	RGBA32Float: {Name: "R32G32B32A32_FLOAT", PixelBytes: 16, Kind: KindFloat, Channels: rgba(32)},
	RGB32Uint:   {Name: "R32G32B32_UINT", PixelBytes: 12, Kind: KindUint, Channels: rgb(32)},
	RGBA32Uint:  {Name: "R32G32B32A32_UINT", PixelBytes: 16, Kind: KindUint, Channels: rgba(32)},
	RGB32Sint:   {Name: "R32G32B32_SINT", PixelBytes: 12, Kind: KindSint, Channels: rgb(32)},
	RGBA32Sint:  {Name: "R32G32B32A32_SINT", PixelBytes: 16, Kind: KindSint, Channels: rgba(32)},

	D16Unorm:       {Name: "D16_UNORM", PixelBytes: 2, Kind: KindUnorm, Channels: []ChannelBits{ch(ChannelD, 16)}},
	D24UnormX8:     {Name: "D24_UNORM_X8", PixelBytes: 4, Kind: KindUnorm, Channels: []ChannelBits{ch(ChannelD, 24), ch(ChannelX, 8)}},
	D24UnormS8Uint: {Name: "D24_UNORM_S8_UINT", PixelBytes: 4, Kind: KindUnorm, Channels: []ChannelBits{ch(ChannelD, 24), {Channel: ChannelS, Bits: 8, Kind: KindUint}}},
	D32Float:       {Name: "D32_FLOAT", PixelBytes: 4, Kind: KindFloat, Channels: []ChannelBits{ch(ChannelD, 32)}},
	D32FloatS8Uint: {Name: "D32_FLOAT_S8_UINT", PixelBytes: 8, Kind: KindFloat, Channels: []ChannelBits{ch(ChannelD, 32), {Channel: ChannelS, Bits: 8, Kind: KindUint}, ch(ChannelX, 24)}},
	S8Uint:         {Name: "S8_UINT", PixelBytes: 1, Kind: KindUint, Channels: []ChannelBits{ch(ChannelS, 8)}},

	BC1RGBAUnorm: {Name: "BC1_RGBA_UNORM_BLOCK", PixelBytes: 8, Kind: KindUnorm, Compressed: true, BlockW: 4, BlockH: 4,
		RedBits: 5, GreenBits: 6, BlueBits: 5, AlphaBits: 1},

	YUV444Unorm: {Name: "G8_B8_R8_3PLANE_444_UNORM", PixelBytes: 3, Kind: KindUnorm, YUV: true,
		Channels: []ChannelBits{ch(ChannelY, 8), ch(ChannelCb, 8), ch(ChannelCr, 8)}},
}

func rgb(bits int) []ChannelBits {
	return []ChannelBits{ch(ChannelR, bits), ch(ChannelG, bits), ch(ChannelB, bits)}
}

func rgba(bits int) []ChannelBits {
	return []ChannelBits{ch(ChannelR, bits), ch(ChannelG, bits), ch(ChannelB, bits), ch(ChannelA, bits)}
}

func bgra(bits int) []ChannelBits {
	return []ChannelBits{ch(ChannelB, bits), ch(ChannelG, bits), ch(ChannelR, bits), ch(ChannelA, bits)}
}

func init() {
	for i := range infoTable {
		info := &infoTable[i]
		info.ID = ID(i)
		if info.BlockW == 0 {
			info.BlockW, info.BlockH = 1, 1
		}
		sawB := false
		for _, c := range info.Channels {
			switch c.Channel {
			case ChannelR:
				info.RedBits = c.Bits
				info.bgra = sawB
			case ChannelG:
				info.GreenBits = c.Bits
			case ChannelB:
				info.BlueBits = c.Bits
				sawB = true
			case ChannelA:
				info.AlphaBits = c.Bits
			case ChannelL:
				info.LuminanceBits = c.Bits
			case ChannelD:
				info.DepthBits = c.Bits
			case ChannelS:
				info.StencilBits = c.Bits
			case ChannelY, ChannelCb, ChannelCr:
				info.RedBits, info.GreenBits, info.BlueBits = 8, 8, 8
			}
		}
	}
}

// Get returns the description of id. It panics on unknown formats.
func Get(id ID) *Info {
	if int(id) >= len(infoTable) {
		panic("format: unknown format id")
	}
	return &infoTable[id]
}

// String returns the format name.
func (id ID) String() string {
	if int(id) >= len(infoTable) {
		return "UNKNOWN"
	}
	return infoTable[id].Name
}

// Valid reports whether id names a storage format.
func (id ID) Valid() bool { return id != None && int(id) < len(infoTable) }

// IsBGRA reports whether blue is stored before red.
func (f *Info) IsBGRA() bool { return f.bgra }

// IsInt reports whether the color components are integers.
func (f *Info) IsInt() bool { return f.Kind == KindUint || f.Kind == KindSint }

// IsSnorm reports whether the components are signed normalized.
func (f *Info) IsSnorm() bool { return f.Kind == KindSnorm }

// IsSint reports whether the components are signed integers.
func (f *Info) IsSint() bool { return f.Kind == KindSint }

// HasDepthOrStencil reports whether the format has depth or stencil bits.
func (f *Info) HasDepthOrStencil() bool { return f.DepthBits > 0 || f.StencilBits > 0 }

// HasDepthAndStencil reports whether the format is combined depth/stencil.
func (f *Info) HasDepthAndStencil() bool { return f.DepthBits > 0 && f.StencilBits > 0 }

// IsColor reports whether the format is a color format.
func (f *Info) IsColor() bool { return !f.HasDepthOrStencil() && f.ID != None }

// HasComponent reports whether the decoded texel component i carries
// stored data. Color formats use components R, G, B, A; depth/stencil
// formats use 0 for depth and 1 for stencil.
func (f *Info) HasComponent(i int) bool {
	if f.HasDepthOrStencil() {
		switch i {
		case 0:
			return f.DepthBits > 0
		case 1:
			return f.StencilBits > 0
		}
		return false
	}
	switch i {
	case 0:
		return f.RedBits > 0 || f.LuminanceBits > 0
	case 1:
		return f.GreenBits > 0 || f.LuminanceBits > 0
	case 2:
		return f.BlueBits > 0 || f.LuminanceBits > 0
	case 3:
		return f.AlphaBits > 0
	}
	return false
}

// RowPitch returns the number of bytes for width texels (or blocks).
func (f *Info) RowPitch(width int) int {
	blocks := (width + f.BlockW - 1) / f.BlockW
	return blocks * f.PixelBytes
}

// DataSize returns the byte size of a width x height x depth region.
func (f *Info) DataSize(width, height, depth int) int {
	rows := (height + f.BlockH - 1) / f.BlockH
	return f.RowPitch(width) * rows * depth
}

// CopyBufferAlignment is the byte alignment required for buffer offsets in
// buffer/image copies involving this format.
func (f *Info) CopyBufferAlignment() int {
	if f.HasDepthOrStencil() {
		return 4
	}
	return lcm(f.PixelBytes, 4)
}

func lcm(a, b int) int {
	if a == 0 {
		return b
	}
	x, y := a, b
	for y != 0 {
		x, y = y, x%y
	}
	return a / x * b
}
