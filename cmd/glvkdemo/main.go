// Command glvkdemo uploads a gradient into an RGB8 texture, generates its
// mipmaps and writes every level as a PNG.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gogpu/glvk"
	"github.com/gogpu/glvk/backend"
	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

func main() {
	var (
		size    = flag.Int("size", 256, "base level width and height")
		mip     = flag.String("mip", "blit", "mipmap path: cpu, blit or compute")
		dev     = flag.String("backend", "soft", "device: soft or noop")
		output  = flag.String("output", ".", "output directory")
		verbose = flag.Bool("v", false, "log debug output")
	)
	flag.Parse()

	if *verbose {
		glvk.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	d, closeDevice, err := openDevice(*dev, *mip)
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}
	defer closeDevice()

	features, err := forceMipPath(d.Features(), *mip)
	if err != nil {
		log.Fatal(err)
	}
	ctx, err := glvk.NewContext(d, glvk.WithFeatures(features))
	if err != nil {
		log.Fatalf("Failed to create context: %v", err)
	}
	defer ctx.Close()

	n, err := run(ctx, uint32(*size), *output)
	if err != nil {
		log.Fatalf("Demo failed: %v", err)
	}
	p := ctx.PerfCounters()
	log.Printf("Wrote %d levels to %s (mip=%s, cpu mipmaps=%d, stalls=%d)\n", n, *output, *mip, p.CPUMipmaps, p.GPUStalls)
}

// openDevice returns the named device and a function releasing it.
func openDevice(name, mip string) (gpucore.Device, func(), error) {
	switch name {
	case "soft":
		f := gpucore.DefaultFeatures()
		f.GenerateMipmapWithCompute = mip == "compute"
		b := backend.NewSoftwareBackendWithFeatures(f)
		if err := b.Init(); err != nil {
			return nil, nil, err
		}
		return b.Device(), b.Close, nil
	case "noop":
		return openNoop()
	}
	return nil, nil, fmt.Errorf("unknown backend %q", name)
}

// forceMipPath strips the features that would select a faster mipmap path
// than the one requested.
func forceMipPath(f gpucore.Features, mip string) (gpucore.Features, error) {
	switch mip {
	case "compute":
		if !f.GenerateMipmapWithCompute {
			log.Printf("Device has no compute mipmaps, falling back")
		}
	case "blit":
		f.GenerateMipmapWithCompute = false
	case "cpu":
		f.GenerateMipmapWithCompute = false
		f.SupportsDrawUtils = false
		formats := format.SupportMap{}
		for id := format.ID(1); id.Valid(); id++ {
			for bit := format.FeatureSampled; bit <= format.FeatureLinearFilter; bit <<= 1 {
				if bit&format.FeatureBlit == 0 && f.HasFormatFeatures(id, bit) {
					formats[id] |= bit
				}
			}
		}
		f.Formats = formats
	default:
		return f, fmt.Errorf("unknown mip path %q", mip)
	}
	return f, nil
}

func run(ctx *glvk.Context, size uint32, dir string) (int, error) {
	tex := ctx.NewTexture(glvk.Texture2D, "gradient")
	defer tex.Destroy()

	extent := gpucore.Extent3D{Width: size, Height: size, Depth: 1}
	if err := tex.SetImage(glvk.LevelIndex(0), extent, format.RGB8Unorm, glvk.Unpack{}, glvk.HostPixels(gradient(size))); err != nil {
		return 0, err
	}
	if err := tex.GenerateMipmap(); err != nil {
		return 0, err
	}
	log.Printf("RGB8 stored as %v with %d levels\n", tex.ActualFormat(), tex.LevelCount())

	n := int(tex.LevelCount())
	for level := range n {
		d := tex.Desc(0, uint32(level))
		data, err := tex.GetImage(glvk.LevelIndex(uint32(level)), format.RGBA8Unorm)
		if err != nil {
			return level, err
		}
		name := filepath.Join(dir, fmt.Sprintf("level%d.png", level))
		if err := writePNG(name, int(d.Size.Width), int(d.Size.Height), data); err != nil {
			return level, err
		}
	}
	return n, nil
}

// gradient returns RGB8 texels: red across, green down, blue checkered.
func gradient(size uint32) []byte {
	s := int(size)
	px := make([]byte, 0, s*s*3)
	for y := range s {
		for x := range s {
			var b byte
			if (x/16+y/16)%2 == 0 {
				b = 255
			}
			px = append(px, byte(x*255/max(s-1, 1)), byte(y*255/max(s-1, 1)), b)
		}
	}
	return px
}

func writePNG(name string, w, h int, rgba []byte) error {
	img := &image.NRGBA{Pix: rgba, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
