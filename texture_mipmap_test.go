package glvk

import (
	"errors"
	"testing"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/soft"
)

// gradient returns an 8x8 RGBA8 image with red rising along x and green
// along y.
func gradient() []byte {
	d := make([]byte, 0, 8*8*4)
	for y := range 8 {
		for x := range 8 {
			d = append(d, byte(32*x), byte(32*y), 128, 255)
		}
	}
	return d
}

type mipPath struct {
	name     string
	features func() gpucore.Features
	op       soft.Op
}

func mipPaths() []mipPath {
	return []mipPath{
		{"compute", gpucore.DefaultFeatures, soft.OpComputeMipmap},
		{"draw", func() gpucore.Features {
			f := gpucore.DefaultFeatures()
			f.GenerateMipmapWithCompute = false
			f.Formats = format.DefaultSupport().Without(format.RGBA8Unorm, format.FeatureBlit)
			return f
		}, soft.OpDrawMipmap},
		{"blit", func() gpucore.Features {
			f := gpucore.DefaultFeatures()
			f.GenerateMipmapWithCompute = false
			return f
		}, soft.OpBlitImage},
		{"cpu", func() gpucore.Features {
			f := gpucore.DefaultFeatures()
			f.GenerateMipmapWithCompute = false
			f.SupportsDrawUtils = false
			f.Formats = format.SupportMap{
				format.RGBA8Unorm: format.FeatureSampled | format.FeatureColorAttachment |
					format.FeatureTransferSrc | format.FeatureTransferDst,
			}
			return f
		}, soft.OpCopyBufferToImage},
	}
}

// generateChain uploads the gradient on a device with f and returns
// levels 1-3 after GenerateMipmap.
func generateChain(t *testing.T, p mipPath) (chain [][]byte, ctx *Context, dev *soft.Device, tex *Texture) {
	t.Helper()
	ctx, dev = newTestContextOn(t, soft.New(p.features()))
	tex = ctx.NewTexture(Texture2D, p.name)
	t.Cleanup(tex.Destroy)
	mustSetImage(t, tex, 0, size2D(8, 8), format.RGBA8Unorm, gradient())
	if err := tex.GenerateMipmap(); err != nil {
		t.Fatalf("GenerateMipmap() error = %v", err)
	}
	for l := uint32(1); l <= 3; l++ {
		chain = append(chain, mustGetImage(t, tex, l, format.RGBA8Unorm))
	}
	return chain, ctx, dev, tex
}

func TestGenerateMipmapPaths(t *testing.T) {
	for _, p := range mipPaths() {
		t.Run(p.name, func(t *testing.T) {
			_, ctx, dev, tex := generateChain(t, p)
			if tex.LevelCount() != 4 {
				t.Errorf("LevelCount() = %d, want 4", tex.LevelCount())
			}
			if got := dev.CountFor(p.op, tex.Handle()); got == 0 {
				t.Errorf("no %v recorded on the image", p.op)
			}
			cpu := ctx.PerfCounters().CPUMipmaps
			if want := p.name == "cpu"; (cpu != 0) != want {
				t.Errorf("CPUMipmaps = %d, want CPU generation %v", cpu, want)
			}
			if p.name != "compute" && dev.Count(soft.OpComputeMipmap) != 0 {
				t.Error("compute generation used with compute disabled")
			}
		})
	}
}

func TestGenerateMipmapPathsAgree(t *testing.T) {
	const tolerance = 2
	paths := mipPaths()
	ref, _, _, _ := generateChain(t, paths[len(paths)-1])
	for _, p := range paths[:len(paths)-1] {
		t.Run(p.name, func(t *testing.T) {
			chain, _, _, _ := generateChain(t, p)
			for i := range chain {
				if len(chain[i]) != len(ref[i]) {
					t.Fatalf("level %d size = %d, want %d", i+1, len(chain[i]), len(ref[i]))
				}
				for j := range chain[i] {
					d := int(chain[i][j]) - int(ref[i][j])
					if d < -tolerance || d > tolerance {
						t.Errorf("level %d byte %d = %d, CPU path = %d", i+1, j, chain[i][j], ref[i][j])
						break
					}
				}
			}
		})
	}
}

func TestGenerateMipmapLevelOne(t *testing.T) {
	ctx, _ := newTestContext(t)
	tex := ctx.NewTexture(Texture2D, "top")
	defer tex.Destroy()
	mustSetImage(t, tex, 0, size2D(8, 8), format.RGBA8Unorm, gradient())
	if err := tex.GenerateMipmap(); err != nil {
		t.Fatalf("GenerateMipmap() error = %v", err)
	}
	got := mustGetImage(t, tex, 3, format.RGBA8Unorm)
	// The 1x1 level averages the whole image: red and green both average
	// 32*3.5 = 112.
	want := []byte{112, 112, 128, 255}
	for i := range want {
		if d := int(got[i]) - int(want[i]); d < -2 || d > 2 {
			t.Errorf("level 3 = %v, want about %v", got, want)
			break
		}
	}
	if d := tex.Desc(0, 3); d.Size != size2D(1, 1) || d.Format != format.RGBA8Unorm {
		t.Errorf("Desc(0, 3) = %+v, want 1x1 RGBA8Unorm", d)
	}
}

func TestGenerateMipmapDropsStagedLevels(t *testing.T) {
	ctx, _ := newTestContext(t)
	tex := ctx.NewTexture(Texture2D, "staged")
	defer tex.Destroy()
	mustSetImage(t, tex, 0, size2D(4, 4), format.RGBA8Unorm, pattern(4*4*4, 1))
	mustSetImage(t, tex, 1, size2D(2, 2), format.RGBA8Unorm, pattern(2*2*4, 9))
	if err := tex.GenerateMipmap(); err != nil {
		t.Fatalf("GenerateMipmap() error = %v", err)
	}
	if n := tex.StagedUpdateCount(1); n != 0 {
		t.Errorf("StagedUpdateCount(1) = %d, want the upload replaced", n)
	}
}

func TestGenerateMipmapRejects(t *testing.T) {
	ctx, _ := newTestContext(t)

	t.Run("undefined base", func(t *testing.T) {
		tex := ctx.NewTexture(Texture2D, "empty")
		defer tex.Destroy()
		if err := tex.GenerateMipmap(); !errors.Is(err, ErrNoImage) {
			t.Errorf("GenerateMipmap() error = %v, want ErrNoImage", err)
		}
	})
	t.Run("compressed", func(t *testing.T) {
		tex := ctx.NewTexture(Texture2D, "bc1")
		defer tex.Destroy()
		if err := tex.SetCompressedImage(LevelIndex(0), size2D(4, 4), format.BC1RGBAUnorm, HostPixels(make([]byte, 8))); err != nil {
			t.Fatalf("SetCompressedImage() error = %v", err)
		}
		if err := tex.GenerateMipmap(); !errors.Is(err, ErrNotImplemented) {
			t.Errorf("GenerateMipmap() error = %v, want ErrNotImplemented", err)
		}
	})
}

func TestGenerateMipmapSingleLevel(t *testing.T) {
	ctx, dev := newTestContext(t)
	tex := ctx.NewTexture(Texture2D, "one")
	defer tex.Destroy()
	mustSetImage(t, tex, 0, size2D(1, 1), format.RGBA8Unorm, []byte{1, 2, 3, 4})
	if err := tex.GenerateMipmap(); err != nil {
		t.Fatalf("GenerateMipmap() error = %v", err)
	}
	if dev.Count(soft.OpComputeMipmap)+dev.Count(soft.OpBlitImage) != 0 {
		t.Error("a 1x1 texture generated mipmaps")
	}
}

func TestComputeMipmapUsesStorageViews(t *testing.T) {
	_, _, dev, tex := generateChain(t, mipPaths()[0])
	// One source view and a storage view per written level.
	if n := tex.views.Len(); n < 4 {
		t.Errorf("views.Len() = %d, want at least 4", n)
	}
	if dev.LiveViews() < tex.views.Len() {
		t.Errorf("LiveViews() = %d, want at least %d", dev.LiveViews(), tex.views.Len())
	}
}

func TestComputeMipmapFormats(t *testing.T) {
	tests := []struct {
		format      format.ID
		texelBytes  int
		wantCompute bool
	}{
		{format.RGBA8Unorm, 4, true},
		{format.R8Unorm, 1, false},
		{format.RGBA16Float, 8, false},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			ctx, dev := newTestContext(t)
			tex := ctx.NewTexture(Texture2D, "fmt")
			defer tex.Destroy()
			mustSetImage(t, tex, 0, size2D(8, 8), tt.format, make([]byte, 8*8*tt.texelBytes))
			if err := tex.GenerateMipmap(); err != nil {
				t.Fatalf("GenerateMipmap() error = %v", err)
			}
			if got := dev.CountFor(soft.OpComputeMipmap, tex.Handle()) != 0; got != tt.wantCompute {
				t.Errorf("compute generation = %v, want %v", got, tt.wantCompute)
			}
			if tex.LevelCount() != 4 {
				t.Errorf("LevelCount() = %d, want 4", tex.LevelCount())
			}
		})
	}
}
