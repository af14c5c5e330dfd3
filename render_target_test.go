package glvk

import (
	"bytes"
	"testing"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/soft"
)

func TestImplicitMultisampleCompanion(t *testing.T) {
	ctx, dev := newTestContext(t)
	if ctx.Features().SupportsMultisampledRenderToSingleSampled {
		t.Fatal("default features support MSRTSS; the companion path is not exercised")
	}
	tex := ctx.NewTexture(Texture2D, "msaa")
	defer tex.Destroy()
	mustSetImage(t, tex, 0, size2D(8, 8), format.RGBA8Unorm, pattern(8*8*4, 0))

	rt, err := tex.AttachmentRenderTarget(LevelIndex(0), 4)
	if err != nil {
		t.Fatalf("AttachmentRenderTarget() error = %v", err)
	}
	if dev.LiveImages() != 2 {
		t.Errorf("LiveImages() = %d, want the image and one companion", dev.LiveImages())
	}
	if rt.DrawImage() == rt.Image() {
		t.Error("DrawImage() is the single-sampled image")
	}
	desc, ok := dev.ImageDesc(rt.DrawImage())
	if !ok || desc.Samples != 4 {
		t.Errorf("companion samples = %d, want 4", desc.Samples)
	}

	for i := range 3 {
		again, err := tex.AttachmentRenderTarget(LevelIndex(0), 4)
		if err != nil {
			t.Fatalf("AttachmentRenderTarget() #%d error = %v", i, err)
		}
		if again != rt {
			t.Errorf("bind #%d returned a new render target", i)
		}
	}
	if dev.LiveImages() != 2 {
		t.Errorf("LiveImages() = %d after rebinding, want 2", dev.LiveImages())
	}
}

func TestMultisampleCompanionPerLevel(t *testing.T) {
	ctx, dev := newTestContext(t)
	tex := ctx.NewTexture(Texture2D, "levels")
	defer tex.Destroy()
	mustSetImage(t, tex, 0, size2D(4, 4), format.RGBA8Unorm, nil)
	mustSetImage(t, tex, 1, size2D(2, 2), format.RGBA8Unorm, nil)
	tex.SetMipmapFilter(true)

	a, err := tex.AttachmentRenderTarget(LevelIndex(0), 4)
	if err != nil {
		t.Fatalf("AttachmentRenderTarget(0) error = %v", err)
	}
	b, err := tex.AttachmentRenderTarget(LevelIndex(1), 4)
	if err != nil {
		t.Fatalf("AttachmentRenderTarget(1) error = %v", err)
	}
	if a.DrawImage() == b.DrawImage() {
		t.Error("levels share a multisampled companion")
	}
	if got := b.Extent(); got != size2D(2, 2) {
		t.Errorf("Extent() = %+v, want 2x2", got)
	}
	if dev.LiveImages() != 3 {
		t.Errorf("LiveImages() = %d, want 3", dev.LiveImages())
	}
}

func TestMultisampledRenderToSingleSampled(t *testing.T) {
	f := gpucore.DefaultFeatures()
	f.SupportsMultisampledRenderToSingleSampled = true
	ctx, dev := newTestContextOn(t, soft.New(f))
	tex := ctx.NewTexture(Texture2D, "msrtss")
	defer tex.Destroy()
	mustSetImage(t, tex, 0, size2D(4, 4), format.RGBA8Unorm, nil)

	rt, err := tex.AttachmentRenderTarget(LevelIndex(0), 4)
	if err != nil {
		t.Fatalf("AttachmentRenderTarget() error = %v", err)
	}
	if rt.DrawImage() != rt.Image() {
		t.Error("companion allocated although the image renders multisampled itself")
	}
	if tex.Flags()&gpucore.CreateMultisampledRenderToSingleSampled == 0 {
		t.Error("image created without the multisampled-render-to-single-sampled flag")
	}
	if dev.LiveImages() != 1 {
		t.Errorf("LiveImages() = %d, want 1", dev.LiveImages())
	}
}

func TestMultisampledRenderToSingleSampledRespecifies(t *testing.T) {
	f := gpucore.DefaultFeatures()
	f.SupportsMultisampledRenderToSingleSampled = true
	ctx, _ := newTestContextOn(t, soft.New(f))
	tex := ctx.NewTexture(Texture2D, "late")
	defer tex.Destroy()

	d := pattern(4*4*4, 3)
	mustSetImage(t, tex, 0, size2D(4, 4), format.RGBA8Unorm, d)
	if _, err := tex.AttachmentRenderTarget(LevelIndex(0), 1); err != nil {
		t.Fatalf("AttachmentRenderTarget(1 sample) error = %v", err)
	}
	before := ctx.PerfCounters().Respecifications

	if _, err := tex.AttachmentRenderTarget(LevelIndex(0), 4); err != nil {
		t.Fatalf("AttachmentRenderTarget(4 samples) error = %v", err)
	}
	if ctx.PerfCounters().Respecifications != before+1 {
		t.Errorf("Respecifications = %d, want %d", ctx.PerfCounters().Respecifications, before+1)
	}
	if tex.Flags()&gpucore.CreateMultisampledRenderToSingleSampled == 0 {
		t.Error("respecified image lacks the multisampled-render-to-single-sampled flag")
	}
	if got := mustGetImage(t, tex, 0, format.RGBA8Unorm); !bytes.Equal(got, d) {
		t.Errorf("contents after respecification = %v, want %v", got, d)
	}
}

func TestRenderTargetDroppedWithImage(t *testing.T) {
	ctx, dev := newTestContext(t)
	tex := ctx.NewTexture(Texture2D, "drop")
	defer tex.Destroy()
	mustSetImage(t, tex, 0, size2D(4, 4), format.RGBA8Unorm, nil)

	rt, err := tex.AttachmentRenderTarget(LevelIndex(0), 4)
	if err != nil {
		t.Fatalf("AttachmentRenderTarget() error = %v", err)
	}
	mustSetImage(t, tex, 0, size2D(2, 2), format.RGBA8Unorm, nil)
	if dev.LiveImages() != 0 {
		t.Errorf("LiveImages() = %d, want the image and its companion released", dev.LiveImages())
	}
	if _, err := rt.LoadOp(); err == nil {
		t.Error("LoadOp() on a stale render target succeeded")
	}

	again, err := tex.AttachmentRenderTarget(LevelIndex(0), 4)
	if err != nil {
		t.Fatalf("AttachmentRenderTarget() error = %v", err)
	}
	if again == rt {
		t.Error("render target of the released image was reused")
	}
	if got := again.Extent(); got != size2D(2, 2) {
		t.Errorf("Extent() = %+v, want 2x2", got)
	}
}

func TestResolveMultisampleCompanion(t *testing.T) {
	ctx, dev := newTestContext(t)
	tex := ctx.NewTexture(Texture2D, "resolve")
	defer tex.Destroy()
	mustSetImage(t, tex, 0, size2D(4, 4), format.RGBA8Unorm, nil)

	rt, err := tex.AttachmentRenderTarget(LevelIndex(0), 4)
	if err != nil {
		t.Fatalf("AttachmentRenderTarget() error = %v", err)
	}
	if err := rt.Resolve(); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := dev.CountFor(soft.OpResolveImage, rt.Image()); got != 1 {
		t.Errorf("resolves into the image = %d, want 1", got)
	}
	if dev.Layout(rt.Image()) != gpucore.LayoutTransferDstOptimal {
		t.Errorf("image layout = %v, want TransferDstOptimal", dev.Layout(rt.Image()))
	}
}

func TestLoadOpDefersFullClear(t *testing.T) {
	ctx, dev := newTestContext(t)
	tex := ctx.NewTexture(Texture2D, "load")
	defer tex.Destroy()
	mustSetImage(t, tex, 0, size2D(4, 4), format.RGBA8Unorm, nil)

	rt, err := tex.AttachmentRenderTarget(LevelIndex(0), 1)
	if err != nil {
		t.Fatalf("AttachmentRenderTarget() error = %v", err)
	}
	if err := tex.ClearImage(LevelIndex(0), format.Color{0, 0, 1, 1}); err != nil {
		t.Fatalf("ClearImage() error = %v", err)
	}
	dev.ResetLog()

	op, err := rt.LoadOp()
	if err != nil {
		t.Fatalf("LoadOp() error = %v", err)
	}
	if !op.Clear || op.Color != (format.Color{0, 0, 1, 1}) {
		t.Errorf("LoadOp() = %+v, want a clear to blue", op)
	}
	if got := dev.Count(soft.OpClearColor); got != 0 {
		t.Errorf("clears recorded = %d, want the clear left to the render pass", got)
	}
	if tex.StagedUpdateCount(0) != 0 {
		t.Errorf("StagedUpdateCount(0) = %d, want 0", tex.StagedUpdateCount(0))
	}

	op, err = rt.LoadOp()
	if err != nil || op.Clear {
		t.Errorf("second LoadOp() = %+v, %v, want a plain load", op, err)
	}
}

func TestRenderTargetView(t *testing.T) {
	ctx, dev := newTestContext(t)
	tex := ctx.NewTexture(Texture2DArray, "array")
	defer tex.Destroy()
	size := gpucore.Extent3D{Width: 4, Height: 4, Depth: 3}
	if err := tex.SetImage(LevelIndex(0), size, format.RGBA8Unorm, Unpack{}, nil); err != nil {
		t.Fatalf("SetImage() error = %v", err)
	}

	rt, err := tex.AttachmentRenderTarget(Index{Level: 0, Layer: 1, LayerCount: 1}, 1)
	if err != nil {
		t.Fatalf("AttachmentRenderTarget() error = %v", err)
	}
	if rt.Layer() != 1 || rt.LayerCount() != 1 {
		t.Errorf("Layer(), LayerCount() = %d, %d, want 1, 1", rt.Layer(), rt.LayerCount())
	}
	v, err := rt.View()
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	desc, ok := dev.View(v)
	if !ok {
		t.Fatal("View() returned an unknown view")
	}
	if desc.Range.BaseLayer != 1 || desc.Range.LayerCount != 1 || desc.Range.LevelCount != 1 {
		t.Errorf("view range = %+v, want layer 1 of level 0", desc.Range)
	}
}

func TestAttachmentUndefinedLevel(t *testing.T) {
	ctx, _ := newTestContext(t)
	tex := ctx.NewTexture(Texture2D, "undefined")
	defer tex.Destroy()
	if _, err := tex.AttachmentRenderTarget(LevelIndex(0), 1); err == nil {
		t.Error("AttachmentRenderTarget() on an undefined level succeeded")
	}
}
