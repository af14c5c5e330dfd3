package image

import (
	"testing"

	"github.com/gogpu/glvk/format"
)

func solid(id format.ID, w, h, d int, c format.Color) MipLevel {
	info := format.Get(id)
	lvl := MipLevel{Width: w, Height: h, Depth: d, Data: make([]byte, w*h*d*info.PixelBytes)}
	for i := 0; i < w*h*d; i++ {
		info.Encode(c, lvl.Data[i*info.PixelBytes:])
	}
	return lvl
}

func TestGenerateMipmaps(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		count         int
		wantLevels    int
	}{
		{"64x64 square", 64, 64, 0, 7},
		{"128x64 rectangle", 128, 64, 0, 8},
		{"1x1 minimum", 1, 1, 0, 1},
		{"100x50 odd", 100, 50, 0, 7},
		{"count limits the chain", 64, 64, 3, 3},
		{"count past full chain", 4, 4, 10, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := solid(format.RGBA8Unorm, tt.width, tt.height, 1, format.Color{1, 0, 0, 1})
			chain := GenerateMipmaps(format.RGBA8Unorm, base, tt.count)
			if len(chain) != tt.wantLevels {
				t.Fatalf("levels = %d, want %d", len(chain), tt.wantLevels)
			}
			last := chain[len(chain)-1]
			if tt.count == 0 && (last.Width != 1 || last.Height != 1) {
				t.Errorf("last level = %dx%d, want 1x1", last.Width, last.Height)
			}
			for i := 1; i < len(chain); i++ {
				prev, cur := chain[i-1], chain[i]
				if cur.Width != max(1, prev.Width/2) || cur.Height != max(1, prev.Height/2) {
					t.Errorf("level %d = %dx%d after %dx%d", i, cur.Width, cur.Height, prev.Width, prev.Height)
				}
			}
		})
	}
}

func TestGenerateMipmapsCompressedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("GenerateMipmaps on BC1 did not panic")
		}
	}()
	GenerateMipmaps(format.BC1RGBAUnorm, MipLevel{Width: 4, Height: 4, Depth: 1, Data: make([]byte, 8)}, 0)
}

func TestDownsample(t *testing.T) {
	tests := []struct {
		name string
		id   format.ID
		src  MipLevel
		want []byte
	}{
		{
			name: "2x2 average",
			id:   format.R8Unorm,
			src:  MipLevel{Width: 2, Height: 2, Depth: 1, Data: []byte{0, 100, 200, 100}},
			want: []byte{100},
		},
		{
			name: "odd width clamps",
			id:   format.R8Unorm,
			src:  MipLevel{Width: 3, Height: 1, Depth: 1, Data: []byte{10, 30, 250}},
			want: []byte{20},
		},
		{
			name: "integer truncates",
			id:   format.RGBA8Uint,
			src:  MipLevel{Width: 2, Height: 1, Depth: 1, Data: []byte{1, 1, 1, 1, 2, 2, 2, 2}},
			want: []byte{1, 1, 1, 1},
		},
		{
			name: "3d averages 8 texels",
			id:   format.R8Unorm,
			src:  MipLevel{Width: 2, Height: 2, Depth: 2, Data: []byte{0, 0, 0, 0, 80, 80, 80, 80}},
			want: []byte{40},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downsample(format.Get(tt.id), tt.src)
			if len(got.Data) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got.Data), len(tt.want))
			}
			for i := range tt.want {
				if got.Data[i] != tt.want[i] {
					t.Errorf("Data[%d] = %d, want %d", i, got.Data[i], tt.want[i])
				}
			}
		})
	}
}

func TestDownsampleKeepsAlpha(t *testing.T) {
	src := solid(format.RGBA8Unorm, 4, 4, 1, format.Color{0.2, 0.4, 0.6, 1})
	got := Downsample(format.Get(format.RGBA8Unorm), src)
	if got.Width != 2 || got.Height != 2 {
		t.Fatalf("size = %dx%d, want 2x2", got.Width, got.Height)
	}
	for i := 0; i < len(got.Data); i += 4 {
		if got.Data[i+3] != 255 {
			t.Errorf("texel %d alpha = %d, want 255", i/4, got.Data[i+3])
		}
		if got.Data[i] != src.Data[0] {
			t.Errorf("texel %d red = %d, want %d", i/4, got.Data[i], src.Data[0])
		}
	}
}
