//go:build !nogpu

package native

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/glvk"
	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// newNoopDevice opens a Device on the noop HAL. Close runs on cleanup.
func newNoopDevice(t *testing.T) *Device {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	d, err := OpenInstance(instance)
	if err != nil {
		instance.Destroy()
		t.Fatalf("OpenInstance() error = %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return d
}

func newImage(t *testing.T, d *Device, w, h, levels uint32) gpucore.ImageHandle {
	t.Helper()
	img, err := d.CreateImage(&gpucore.ImageDesc{
		Label:  "test",
		Format: format.RGBA8Unorm,
		Extent: gpucore.Extent3D{Width: w, Height: h, Depth: 1},
		Levels: levels,
		Layers: 1,
		Usage:  gpucore.UsageSampled | gpucore.UsageTransferDst | gpucore.UsageTransferSrc,
	})
	if err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}
	return img
}

func full(levels uint32) gpucore.SubresourceRange {
	return gpucore.SubresourceRange{Aspect: gpucore.AspectColor, LevelCount: levels, LayerCount: 1}
}

// ===== Resources =====

func TestDeviceCreateDestroy(t *testing.T) {
	d := newNoopDevice(t)
	img := newImage(t, d, 16, 16, 5)
	v, err := d.CreateView(&gpucore.ViewDesc{Image: img, Type: gpucore.View2D, Format: format.RGBA8Unorm, Range: full(5)})
	if err != nil {
		t.Fatalf("CreateView() error = %v", err)
	}
	if d.LiveTextures() != 1 {
		t.Errorf("LiveTextures() = %d, want 1", d.LiveTextures())
	}
	d.DestroyView(v)
	d.DestroyImage(img)
	if d.LiveTextures() != 0 {
		t.Errorf("LiveTextures() = %d after destroy, want 0", d.LiveTextures())
	}
	if err := d.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestCreateImageRejects(t *testing.T) {
	d := newNoopDevice(t)
	tests := []struct {
		name string
		desc gpucore.ImageDesc
		want error
	}{
		{"emulated format", gpucore.ImageDesc{Format: format.RGB8Unorm, Extent: gpucore.Extent3D{Width: 4, Height: 4, Depth: 1}, Levels: 1, Layers: 1}, ErrUnsupportedFormat},
		{"multisampled", gpucore.ImageDesc{Format: format.RGBA8Unorm, Extent: gpucore.Extent3D{Width: 4, Height: 4, Depth: 1}, Levels: 1, Layers: 1, Samples: 4}, gpucore.ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateImage(&tt.desc); !errors.Is(err, tt.want) {
				t.Errorf("CreateImage() error = %v, want %v", err, tt.want)
			}
		})
	}
	if d.LiveTextures() != 0 {
		t.Errorf("LiveTextures() = %d, want 0", d.LiveTextures())
	}
}

func TestImportImageUnsupported(t *testing.T) {
	d := newNoopDevice(t)
	desc := &gpucore.ImageDesc{Format: format.RGBA8Unorm, Extent: gpucore.Extent3D{Width: 4, Height: 4, Depth: 1}, Levels: 1, Layers: 1}
	if _, err := d.ImportImage(desc, gpucore.ExternalMemory{Handle: 1, Size: 64}); !errors.Is(err, ErrExternalMemory) {
		t.Errorf("ImportImage() error = %v, want ErrExternalMemory", err)
	}
}

// ===== Residency =====

func TestFlushUploadsDirtyLevels(t *testing.T) {
	d := newNoopDevice(t)
	img := newImage(t, d, 4, 4, 3)

	var acc gpucore.Access
	acc.OnImageTransferWrite(img, full(3))
	cmd, err := d.OutsideRenderPassCommandBuffer(&acc)
	if err != nil {
		t.Fatalf("OutsideRenderPassCommandBuffer() error = %v", err)
	}
	cmd.PipelineBarrier(gpucore.StageTopOfPipe, gpucore.StageTransfer, gpucore.ImageBarrier{
		Image: img, DstAccess: gpucore.AccessTransferWrite,
		OldLayout: gpucore.LayoutUndefined, NewLayout: gpucore.LayoutTransferDstOptimal,
		SrcQueueFamily: gpucore.QueueFamilyIgnored, DstQueueFamily: gpucore.QueueFamilyIgnored,
		Range: full(3),
	})
	cmd.ClearColorImage(img, gpucore.LayoutTransferDstOptimal, format.Color{1, 0, 0, 1},
		gpucore.SubresourceRange{Aspect: gpucore.AspectColor, BaseLevel: 1, LevelCount: 1, LayerCount: 1})
	cmd.PipelineBarrier(gpucore.StageTransfer, gpucore.StageFragmentShader, gpucore.ImageBarrier{
		Image: img, SrcAccess: gpucore.AccessTransferWrite, DstAccess: gpucore.AccessShaderRead,
		OldLayout: gpucore.LayoutTransferDstOptimal, NewLayout: gpucore.LayoutShaderReadOnlyOptimal,
		SrcQueueFamily: gpucore.QueueFamilyIgnored, DstQueueFamily: gpucore.QueueFamilyIgnored,
		Range: full(3),
	})

	tex := d.textures[img]
	if tex.dirty != 1<<1 {
		t.Errorf("dirty levels = %b, want level 1", tex.dirty)
	}
	if err := d.Flush("test"); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if tex.dirty != 0 {
		t.Errorf("dirty levels = %b after Flush, want none", tex.dirty)
	}
	if tex.usage != gputypes.TextureUsageTextureBinding {
		t.Errorf("usage = %v after Flush, want TextureBinding", tex.usage)
	}
	if err := d.Finish("test"); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if len(d.pending) != 0 {
		t.Errorf("%d command buffers pending after Finish", len(d.pending))
	}
}

func TestDestroyInUseWaitsForFinish(t *testing.T) {
	d := newNoopDevice(t)
	img := newImage(t, d, 2, 2, 1)
	var acc gpucore.Access
	acc.OnImageTransferRead(img, full(1))
	if _, err := d.OutsideRenderPassCommandBuffer(&acc); err != nil {
		t.Fatalf("OutsideRenderPassCommandBuffer() error = %v", err)
	}
	d.DestroyImage(img)
	if len(d.garbage) != 1 || d.LiveTextures() != 1 {
		t.Fatalf("garbage = %d, LiveTextures() = %d, want the texture kept", len(d.garbage), d.LiveTextures())
	}
	if err := d.Finish("test"); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if d.LiveTextures() != 0 {
		t.Errorf("LiveTextures() = %d after Finish, want 0", d.LiveTextures())
	}
}

func TestReadLevelSize(t *testing.T) {
	d := newNoopDevice(t)
	// 20 texels of 4 bytes is not a multiple of the copy pitch.
	img := newImage(t, d, 20, 3, 2)
	got, err := d.ReadLevel(img, 0)
	if err != nil {
		t.Fatalf("ReadLevel() error = %v", err)
	}
	if len(got) != 20*3*4 {
		t.Errorf("len(ReadLevel()) = %d, want %d", len(got), 20*3*4)
	}
	if _, err := d.ReadLevel(img, 2); !errors.Is(err, gpucore.ErrInvalidHandle) {
		t.Errorf("ReadLevel(2) error = %v, want ErrInvalidHandle", err)
	}
}

func TestClosedDevice(t *testing.T) {
	d := newNoopDevice(t)
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := d.CreateImage(&gpucore.ImageDesc{Format: format.RGBA8Unorm}); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateImage() after Close error = %v, want ErrClosed", err)
	}
	if err := d.Flush("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush() after Close error = %v, want ErrClosed", err)
	}
}

// ===== glvk on the HAL device =====

func TestContextRoundTrip(t *testing.T) {
	d := newNoopDevice(t)
	ctx, err := glvk.NewContext(d)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	defer ctx.Close()

	tex := ctx.NewTexture(glvk.Texture2D, "hal")
	defer tex.Destroy()
	size := gpucore.Extent3D{Width: 4, Height: 4, Depth: 1}
	// RGB8 is emulated as RGBA8 on this device.
	pixels := bytes.Repeat([]byte{10, 20, 30}, 16)
	if err := tex.SetImage(glvk.LevelIndex(0), size, format.RGB8Unorm, glvk.Unpack{}, glvk.HostPixels(pixels)); err != nil {
		t.Fatalf("SetImage() error = %v", err)
	}
	if err := tex.GenerateMipmap(); err != nil {
		t.Fatalf("GenerateMipmap() error = %v", err)
	}
	got, err := tex.GetImage(glvk.LevelIndex(0), format.RGB8Unorm)
	if err != nil {
		t.Fatalf("GetImage() error = %v", err)
	}
	if !bytes.Equal(got, pixels) {
		t.Errorf("GetImage() = %v, want %v", got, pixels)
	}
	if tex.ActualFormat() != format.RGBA8Unorm {
		t.Errorf("ActualFormat() = %v, want RGBA8Unorm", tex.ActualFormat())
	}
	if err := d.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}
