package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/glvk"
	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

func TestGradient(t *testing.T) {
	px := gradient(4)
	if len(px) != 4*4*3 {
		t.Fatalf("len(gradient(4)) = %d, want %d", len(px), 4*4*3)
	}
	if px[0] != 0 || px[len(px)-3] != 255 {
		t.Errorf("gradient red = %d..%d, want 0..255", px[0], px[len(px)-3])
	}
}

func TestForceMipPath(t *testing.T) {
	base := gpucore.DefaultFeatures()

	f, err := forceMipPath(base, "cpu")
	if err != nil {
		t.Fatalf("forceMipPath(cpu) error = %v", err)
	}
	if f.GenerateMipmapWithCompute || f.SupportsDrawUtils {
		t.Error("forceMipPath(cpu) kept a GPU mipmap path")
	}
	if f.HasFormatFeatures(format.RGBA8Unorm, format.FeatureBlitSrc) {
		t.Error("forceMipPath(cpu) kept blit support")
	}
	if !f.HasFormatFeatures(format.RGBA8Unorm, format.FeatureSampled) {
		t.Error("forceMipPath(cpu) dropped sampling")
	}

	f, err = forceMipPath(base, "blit")
	if err != nil || f.GenerateMipmapWithCompute {
		t.Errorf("forceMipPath(blit) = compute %v, err %v", f.GenerateMipmapWithCompute, err)
	}
	if _, err := forceMipPath(base, "magic"); err == nil {
		t.Error("forceMipPath(magic) error = nil")
	}
}

func TestRun(t *testing.T) {
	for _, mip := range []string{"cpu", "blit", "compute"} {
		t.Run(mip, func(t *testing.T) {
			d, closeDevice, err := openDevice("soft", mip)
			if err != nil {
				t.Fatalf("openDevice() error = %v", err)
			}
			defer closeDevice()
			features, err := forceMipPath(d.Features(), mip)
			if err != nil {
				t.Fatal(err)
			}
			ctx, err := glvk.NewContext(d, glvk.WithFeatures(features))
			if err != nil {
				t.Fatalf("NewContext() error = %v", err)
			}
			defer ctx.Close()

			dir := t.TempDir()
			n, err := run(ctx, 16, dir)
			if err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if n != 5 {
				t.Errorf("run() = %d levels, want 5", n)
			}
			if mip == "cpu" && ctx.PerfCounters().CPUMipmaps != 1 {
				t.Errorf("CPUMipmaps = %d, want 1", ctx.PerfCounters().CPUMipmaps)
			}
			b, err := os.ReadFile(filepath.Join(dir, "level4.png"))
			if err != nil {
				t.Fatal(err)
			}
			img, err := png.Decode(bytes.NewReader(b))
			if err != nil {
				t.Fatalf("png.Decode() error = %v", err)
			}
			if got := img.Bounds().Dx(); got != 1 {
				t.Errorf("level 4 width = %d, want 1", got)
			}
		})
	}
}
