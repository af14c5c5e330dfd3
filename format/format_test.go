package format

import (
	"bytes"
	"math"
	"testing"
)

// ===== Info =====

func TestInfoBits(t *testing.T) {
	tests := []struct {
		id               ID
		r, g, b, a, d, s int
		bgra, color      bool
	}{
		{RGBA8Unorm, 8, 8, 8, 8, 0, 0, false, true},
		{BGRA8Unorm, 8, 8, 8, 8, 0, 0, true, true},
		{RGB8Unorm, 8, 8, 8, 0, 0, 0, false, true},
		{D24UnormS8Uint, 0, 0, 0, 0, 24, 8, false, false},
		{D32Float, 0, 0, 0, 0, 32, 0, false, false},
		{S8Uint, 0, 0, 0, 0, 0, 8, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			f := Get(tt.id)
			got := []int{f.RedBits, f.GreenBits, f.BlueBits, f.AlphaBits, f.DepthBits, f.StencilBits}
			want := []int{tt.r, tt.g, tt.b, tt.a, tt.d, tt.s}
			for i := range got {
				if got[i] != want[i] {
					t.Errorf("bits[%d] = %d, want %d", i, got[i], want[i])
				}
			}
			if f.IsBGRA() != tt.bgra {
				t.Errorf("IsBGRA() = %v, want %v", f.IsBGRA(), tt.bgra)
			}
			if f.IsColor() != tt.color {
				t.Errorf("IsColor() = %v, want %v", f.IsColor(), tt.color)
			}
		})
	}
}

func TestCopyBufferAlignment(t *testing.T) {
	tests := []struct {
		id   ID
		want int
	}{
		{R8Unorm, 4},
		{RGB8Unorm, 12},
		{RGBA8Unorm, 4},
		{RGBA16Float, 8},
		{RGB32Float, 12},
		{D16Unorm, 4},
		{BC1RGBAUnorm, 8},
	}
	for _, tt := range tests {
		if got := Get(tt.id).CopyBufferAlignment(); got != tt.want {
			t.Errorf("%v.CopyBufferAlignment() = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestDataSizeCompressed(t *testing.T) {
	// 5x5 texels = 2x2 blocks of 8 bytes.
	if got := Get(BC1RGBAUnorm).DataSize(5, 5, 1); got != 32 {
		t.Errorf("DataSize(5,5,1) = %d, want 32", got)
	}
}

// ===== Texels =====

func TestDecodeEncodeRoundTrip(t *testing.T) {
	ids := []ID{R8Unorm, R8Snorm, RG8Unorm, RGB8Unorm, RGBA8Unorm, RGBA8Snorm, RGBA8Uint,
		RGBA8Sint, BGRA8Unorm, L8Unorm, A8Unorm, L8A8Unorm, RGBA16Float, R32Float,
		RGBA32Float, RGBA32Uint, RGBA32Sint, D16Unorm, D24UnormS8Uint, D32Float, S8Uint}
	for _, id := range ids {
		t.Run(id.String(), func(t *testing.T) {
			f := Get(id)
			src := make([]byte, f.PixelBytes)
			for i := range src {
				src[i] = byte(0x11 * (i + 1))
			}
			if id == R8Snorm || id == RGBA8Snorm {
				// 0x80 is the one snorm encoding that does not round trip.
				src[0] = 0x7f
			}
			if f.Kind == KindFloat {
				// Use finite, exactly representable values.
				f.Encode(Color{0.5, 0.25, 2, 1}, src)
			}
			if id == D24UnormS8Uint {
				src = []byte{0x12, 0x34, 0x56, 0x78}
			}
			c := f.Decode(src)
			dst := make([]byte, f.PixelBytes)
			f.Encode(c, dst)
			if !bytes.Equal(src, dst) {
				t.Errorf("round trip = %x, want %x", dst, src)
			}
		})
	}
}

func TestDecodeDefaults(t *testing.T) {
	c := Get(RGB8Unorm).Decode([]byte{255, 0, 51})
	want := Color{1, 0, 0.2, 1}
	for i := range c {
		if math.Abs(c[i]-want[i]) > 1e-9 {
			t.Fatalf("Decode(RGB8) = %v, want %v", c, want)
		}
	}
	l := Get(L8Unorm).Decode([]byte{255})
	if l != (Color{1, 1, 1, 1}) {
		t.Errorf("Decode(L8) = %v, want all ones", l)
	}
}

func TestHalfFloat(t *testing.T) {
	for _, v := range []float32{0, 1, -2, 0.5, 65504, 6.103515625e-05} {
		h := floatToHalf(v)
		if got := halfToFloat(h); got != v {
			t.Errorf("half(%v) = %v", v, got)
		}
	}
}

func TestYUVRoundTrip(t *testing.T) {
	f := Get(YUV444Unorm)
	buf := make([]byte, 3)
	f.Encode(Color{0.8, 0.4, 0.2, 1}, buf)
	c := f.Decode(buf)
	for i, want := range []float64{0.8, 0.4, 0.2} {
		if math.Abs(c[i]-want) > 0.02 {
			t.Errorf("YUV component %d = %v, want ~%v", i, c[i], want)
		}
	}
}

// ===== Fallback table =====

func TestResolveFallbacks(t *testing.T) {
	table := DefaultTable()
	support := DefaultSupport()
	tests := []struct {
		intended ID
		want     ID
		mask     uint8
	}{
		{RGBA8Unorm, RGBA8Unorm, 0},
		{RGB8Unorm, RGBA8Unorm, 1 << 3},
		{RGB32Float, RGBA32Float, 1 << 3},
		{L8Unorm, R8Unorm, 0},
		{A8Unorm, R8Unorm, 0},
		{L8A8Unorm, RG8Unorm, 0},
		{D24UnormX8, D24UnormS8Uint, 1 << 1},
	}
	for _, tt := range tests {
		t.Run(tt.intended.String(), func(t *testing.T) {
			fb := table.Resolve(tt.intended, AccessSampleOnly, support)
			if fb.Actual != tt.want {
				t.Errorf("Resolve() actual = %v, want %v", fb.Actual, tt.want)
			}
			if got := fb.EmulatedMask(); got != tt.mask {
				t.Errorf("EmulatedMask() = %b, want %b", got, tt.mask)
			}
		})
	}
}

func TestResolveRenderableSkipsNonAttachable(t *testing.T) {
	table := DefaultTable()
	support := DefaultSupport()
	fb := table.Resolve(BC1RGBAUnorm, AccessSampleOnly, support)
	if fb.Actual != BC1RGBAUnorm {
		t.Fatalf("sample-only BC1 actual = %v, want BC1", fb.Actual)
	}
	fb = table.Resolve(BC1RGBAUnorm, AccessRenderable, support)
	if fb.Actual != RGBA8Unorm {
		t.Errorf("renderable BC1 actual = %v, want RGBA8", fb.Actual)
	}
	if fb.Decompress == nil {
		t.Error("renderable BC1 fallback has no decompressor")
	}
}

func TestNeedsRGBAEmulation(t *testing.T) {
	table := DefaultTable()
	if !table.NeedsRGBAEmulation(RGB32Float, DefaultSupport()) {
		t.Error("RGB32F should need RGBA emulation")
	}
	native := DefaultSupport()
	native[RGB32Float] = FeatureSampled | FeatureTransferSrc | FeatureTransferDst
	if table.NeedsRGBAEmulation(RGB32Float, native) {
		t.Error("RGB32F with native support should not need emulation")
	}
}

// ===== Conversion =====

func TestUploadReadbackEmulatedAlpha(t *testing.T) {
	fb := DefaultTable().Resolve(RGB8Unorm, AccessSampleOnly, DefaultSupport())
	client := []byte{10, 20, 30, 40, 50, 60}
	stored := make([]byte, 8)
	Upload(RGB8Unorm, fb).Rows(stored, 8, client, 6, 2, 1)
	if want := []byte{10, 20, 30, 255, 40, 50, 60, 255}; !bytes.Equal(stored, want) {
		t.Fatalf("stored = %v, want %v", stored, want)
	}
	back := make([]byte, 6)
	Readback(fb, RGB8Unorm).Rows(back, 6, stored, 8, 2, 1)
	if !bytes.Equal(back, client) {
		t.Errorf("readback = %v, want %v", back, client)
	}
}

func TestUploadLuminanceAlpha(t *testing.T) {
	fb := DefaultTable().Resolve(L8A8Unorm, AccessSampleOnly, DefaultSupport())
	stored := make([]byte, 2)
	Upload(L8A8Unorm, fb).Rows(stored, 2, []byte{200, 100}, 2, 1, 1)
	if want := []byte{200, 100}; !bytes.Equal(stored, want) {
		t.Fatalf("stored = %v, want %v", stored, want)
	}
	rgba := make([]byte, 4)
	Readback(fb, RGBA8Unorm).Rows(rgba, 4, stored, 2, 1, 1)
	if want := []byte{200, 200, 200, 100}; !bytes.Equal(rgba, want) {
		t.Errorf("readback RGBA = %v, want %v", rgba, want)
	}
}

func TestConverterFlipAndPremultiply(t *testing.T) {
	src := []byte{
		255, 0, 0, 128,
		0, 255, 0, 255,
	}
	dst := make([]byte, 8)
	cv := NewConverter(RGBA8Unorm, RGBA8Unorm)
	cv.FlipY = true
	cv.PremultiplyAlpha = true
	cv.Rows(dst, 4, src, 4, 1, 2)
	want := []byte{0, 255, 0, 255, 128, 0, 0, 128}
	if !bytes.Equal(dst, want) {
		t.Errorf("Rows() = %v, want %v", dst, want)
	}
}

func TestConverterBGRASwap(t *testing.T) {
	dst := make([]byte, 4)
	NewConverter(RGBA8Unorm, BGRA8Unorm).Rows(dst, 4, []byte{1, 2, 3, 4}, 4, 1, 1)
	if want := []byte{3, 2, 1, 4}; !bytes.Equal(dst, want) {
		t.Errorf("Rows() = %v, want %v", dst, want)
	}
}

func TestFillMasked(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	FillMasked(buf, 8, RGBA8Unorm, Color{0, 0, 0, 1}, 1<<3, 2, 1)
	if want := []byte{1, 2, 3, 255, 5, 6, 7, 255}; !bytes.Equal(buf, want) {
		t.Errorf("FillMasked() = %v, want %v", buf, want)
	}
}

func TestDecompressBC1(t *testing.T) {
	// c0 = pure red, c1 = pure blue, all indices 0 except texel (1,0) = 1.
	block := []byte{0x00, 0xf8, 0x1f, 0x00, 0x04, 0x00, 0x00, 0x00}
	dst := make([]byte, 4*4*4)
	DecompressBC1(dst, 16, block, 4, 4)
	if want := []byte{255, 0, 0, 255}; !bytes.Equal(dst[0:4], want) {
		t.Errorf("texel(0,0) = %v, want %v", dst[0:4], want)
	}
	if want := []byte{0, 0, 255, 255}; !bytes.Equal(dst[4:8], want) {
		t.Errorf("texel(1,0) = %v, want %v", dst[4:8], want)
	}
}

// ===== Transfer policy =====

func TestTransferCompatible(t *testing.T) {
	tests := []struct {
		name           string
		si, sa, di, da ID
		want           bool
	}{
		{"identical", RGBA8Unorm, RGBA8Unorm, RGBA8Unorm, RGBA8Unorm, true},
		{"srgb ignored", RGBA8Unorm, RGBA8Unorm, RGBA8UnormSRGB, RGBA8UnormSRGB, true},
		{"uint vs unorm ignored", RGBA8Uint, RGBA8Uint, RGBA8Unorm, RGBA8Unorm, true},
		{"sign differs", RGBA8Snorm, RGBA8Snorm, RGBA8Unorm, RGBA8Unorm, false},
		{"order differs", BGRA8Unorm, BGRA8Unorm, RGBA8Unorm, RGBA8Unorm, false},
		{"channel count differs", RG8Unorm, RG8Unorm, RGBA8Unorm, RGBA8Unorm, false},
		{"emulated dst", RGBA8Unorm, RGBA8Unorm, RGB8Unorm, RGBA8Unorm, false},
		{"identical emulated", RGB8Unorm, RGBA8Unorm, RGB8Unorm, RGBA8Unorm, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TransferCompatible(tt.si, tt.sa, tt.di, tt.da); got != tt.want {
				t.Errorf("TransferCompatible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyColorspace(t *testing.T) {
	if got := ApplyColorspace(RGBA8Unorm, ColorspaceSRGB); got != RGBA8UnormSRGB {
		t.Errorf("sRGB override = %v", got)
	}
	if got := ApplyColorspace(BGRA8UnormSRGB, ColorspaceLinear); got != BGRA8Unorm {
		t.Errorf("linear override = %v", got)
	}
	if got := ApplyColorspace(R8Unorm, ColorspaceSRGB); got != R8Unorm {
		t.Errorf("no counterpart = %v", got)
	}
}
