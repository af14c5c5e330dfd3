package image_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
	"github.com/gogpu/glvk/internal/layout"
	"github.com/gogpu/glvk/internal/soft"
)

func newStorage(t *testing.T, dev *soft.Device, id format.ID, w, h, levels, layers uint32) *image.Storage {
	t.Helper()
	s := image.New(dev, image.Options{})
	err := s.Init(&image.Desc{
		Label:    t.Name(),
		Fallback: format.DefaultTable().Resolve(id, format.AccessRenderable, dev.Features().Formats),
		Extent:   gpucore.Extent3D{Width: w, Height: h, Depth: 1},
		Levels:   levels,
		Layers:   layers,
		Usage:    gpucore.UsageTransferSrc | gpucore.UsageTransferDst | gpucore.UsageSampled | gpucore.UsageColorAttachment,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return s
}

func box(w, h uint32) gpucore.Box {
	return gpucore.Box{Extent: gpucore.Extent3D{Width: w, Height: h, Depth: 1}}
}

func upload(t *testing.T, s *image.Storage, level image.GLLevel, layer uint32, b gpucore.Box, id format.ID, data []byte) {
	t.Helper()
	err := s.StageHostUpdate(level, layer, 1, b, s.Fallback(), image.HostSource{Data: data, Format: id})
	if err != nil {
		t.Fatalf("StageHostUpdate() error = %v", err)
	}
}

func read(t *testing.T, s *image.Storage, level image.VkLevel, layer uint32, b gpucore.Box, id format.ID) []byte {
	t.Helper()
	out, err := s.ReadPixels(image.ReadParams{Level: level, Layer: layer, Box: b, Format: id})
	if err != nil {
		t.Fatalf("ReadPixels() error = %v", err)
	}
	return out
}

func checkDevice(t *testing.T, dev *soft.Device) {
	t.Helper()
	if err := dev.Err(); err != nil {
		t.Fatalf("device validation: %v", err)
	}
}

// ===== Allocation =====

func TestInitStagesEmulatedClear(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGB8Unorm, 2, 2, 3, 1)

	if s.Actual() != format.RGBA8Unorm || !s.HasEmulatedImageChannels() {
		t.Fatalf("Actual() = %v, emulated = %v, want RGBA8 with emulated alpha", s.Actual(), s.HasEmulatedImageChannels())
	}
	for l := image.GLLevel(0); l < 3; l++ {
		u := s.StagedUpdates(l)
		if len(u) != 1 || u[0].Kind != image.UpdateClearEmulatedChannelsOnly {
			t.Errorf("level %d staged = %+v, want one emulated clear", l, u)
		}
	}

	if err := s.FlushAllStagedUpdates(); err != nil {
		t.Fatalf("FlushAllStagedUpdates() error = %v", err)
	}
	checkDevice(t, dev)
	// Nothing was written before, so each level gets a plain clear.
	if got := dev.CountFor(soft.OpClearColor, s.Handle()); got != 3 {
		t.Errorf("clears = %d, want 3", got)
	}
	if s.HasDefinedContent(0, 0, 1) {
		t.Error("emulated clear marked the content defined")
	}
	raw := read(t, s, 0, 0, box(2, 2), format.None)
	for i := 0; i < len(raw); i += 4 {
		if !bytes.Equal(raw[i:i+4], []byte{0, 0, 0, 255}) {
			t.Errorf("texel %d = %v, want opaque black", i/4, raw[i:i+4])
		}
	}
}

func TestInitZeroInitializesImmediately(t *testing.T) {
	f := gpucore.DefaultFeatures()
	f.ZeroInitializeAllocations = true
	dev := soft.New(f)
	s := newStorage(t, dev, format.RGB8Unorm, 2, 2, 1, 1)

	if s.LevelsWithStagedUpdates().Any() {
		t.Error("zero-initialized image staged updates")
	}
	if got := dev.Count(soft.OpClearColor); got != 1 {
		t.Errorf("clears = %d, want 1", got)
	}
	raw := read(t, s, 0, 0, box(1, 1), format.None)
	if !bytes.Equal(raw, []byte{0, 0, 0, 255}) {
		t.Errorf("texel = %v, want opaque black", raw)
	}
	checkDevice(t, dev)
}

func TestInitOutOfMemory(t *testing.T) {
	dev := soft.NewDefault()
	dev.FailAllocations(1)
	s := image.New(dev, image.Options{})
	err := s.Init(&image.Desc{
		Fallback: format.DefaultTable().Resolve(format.RGBA8Unorm, format.AccessSampleOnly, dev.Features().Formats),
		Extent:   gpucore.Extent3D{Width: 4, Height: 4, Depth: 1},
		Levels:   1,
		Layers:   1,
	})
	if !errors.Is(err, gpucore.ErrOutOfMemory) {
		t.Fatalf("Init() error = %v, want ErrOutOfMemory", err)
	}
	if s.Valid() {
		t.Error("storage valid after failed Init")
	}
}

func TestReleaseKeepsUpdatesDestroyDropsThem(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGBA8Unorm, 2, 2, 1, 1)
	upload(t, s, 0, 0, box(2, 2), format.RGBA8Unorm, make([]byte, 16))

	s.Release()
	if s.Valid() || dev.LiveImages() != 0 {
		t.Fatal("image survived Release")
	}
	if got := len(s.StagedUpdates(0)); got != 1 || dev.LiveBuffers() != 1 {
		t.Errorf("after Release: staged = %d, buffers = %d, want 1 and 1", got, dev.LiveBuffers())
	}
	s.Destroy()
	if dev.LiveBuffers() != 0 {
		t.Errorf("LiveBuffers() = %d after Destroy, want 0", dev.LiveBuffers())
	}
	checkDevice(t, dev)
}

// ===== Uploads and flushing =====

func TestUploadRoundTripEmulated(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGB8Unorm, 2, 2, 1, 1)
	data := []byte{
		10, 20, 30, 40, 50, 60,
		70, 80, 90, 100, 110, 120,
	}
	upload(t, s, 0, 0, box(2, 2), format.RGB8Unorm, data)
	dev.ResetLog()

	if err := s.FlushAllStagedUpdates(); err != nil {
		t.Fatal(err)
	}
	// The full upload supersedes the emulated clear staged by Init.
	if got := dev.Count(soft.OpClearColor); got != 0 {
		t.Errorf("clears = %d, want 0", got)
	}
	if got := dev.Count(soft.OpCopyBufferToImage); got != 1 {
		t.Errorf("copies = %d, want 1", got)
	}
	if dev.LiveBuffers() != 0 {
		t.Errorf("LiveBuffers() = %d after flush, want 0", dev.LiveBuffers())
	}
	if !s.HasDefinedContent(0, 0, 1) {
		t.Error("content not defined after upload")
	}

	if got := read(t, s, 0, 0, box(2, 2), format.RGB8Unorm); !bytes.Equal(got, data) {
		t.Errorf("ReadPixels(RGB8) = %v, want %v", got, data)
	}
	raw := read(t, s, 0, 0, box(2, 2), format.None)
	if raw[3] != 255 || raw[15] != 255 {
		t.Errorf("emulated alpha = %d, %d, want 255", raw[3], raw[15])
	}
	checkDevice(t, dev)
}

func TestUploadFlipY(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.R8Unorm, 1, 3, 1, 1)
	err := s.StageHostUpdate(0, 0, 1, box(1, 3), s.Fallback(), image.HostSource{
		Data:   []byte{1, 2, 3},
		Format: format.R8Unorm,
		FlipY:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := read(t, s, 0, 0, box(1, 3), format.None); !bytes.Equal(got, []byte{3, 2, 1}) {
		t.Errorf("ReadPixels() = %v, want [3 2 1]", got)
	}
}

func TestWriteBarrierElidedForDisjointLayers(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGBA8Unorm, 1, 1, 1, 4)
	for layer := range uint32(4) {
		upload(t, s, 0, layer, box(1, 1), format.RGBA8Unorm, []byte{byte(layer), 0, 0, 255})
	}
	if err := s.FlushAllStagedUpdates(); err != nil {
		t.Fatal(err)
	}
	if got := dev.Count(soft.OpBarrier); got != 1 {
		t.Errorf("barriers = %d, want 1", got)
	}
	if got := dev.Count(soft.OpCopyBufferToImage); got != 4 {
		t.Errorf("copies = %d, want 4", got)
	}

	// Layer 0 was written since the last barrier.
	upload(t, s, 0, 0, box(1, 1), format.RGBA8Unorm, []byte{9, 0, 0, 255})
	if err := s.FlushAllStagedUpdates(); err != nil {
		t.Fatal(err)
	}
	if got := dev.Count(soft.OpBarrier); got != 2 {
		t.Errorf("barriers = %d, want 2", got)
	}
	for layer, want := range []byte{9, 1, 2, 3} {
		if got := read(t, s, 0, uint32(layer), box(1, 1), format.None); got[0] != want {
			t.Errorf("layer %d red = %d, want %d", layer, got[0], want)
		}
	}
	checkDevice(t, dev)
}

func TestFlushLayerRangeKeepsOrder(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGBA8Unorm, 2, 1, 1, 3)

	upload(t, s, 0, 0, box(2, 1), format.RGBA8Unorm, []byte{1, 0, 0, 255, 1, 0, 0, 255})
	upload(t, s, 0, 2, box(2, 1), format.RGBA8Unorm, []byte{2, 0, 0, 255, 2, 0, 0, 255})
	if err := s.FlushStagedUpdates(0, 1, 2, 3, 0, nil); err != nil {
		t.Fatal(err)
	}
	u := s.StagedUpdates(0)
	if len(u) != 1 || u[0].Layer != 0 {
		t.Fatalf("staged = %+v, want the layer 0 update", u)
	}

	// A 2-layer update behind the staged layer 0 update must wait for it,
	// and so must the layer 1 update behind that.
	err := s.StageHostUpdate(0, 0, 2, box(1, 1), s.Fallback(), image.HostSource{
		Data:   []byte{5, 0, 0, 255, 6, 0, 0, 255},
		Format: format.RGBA8Unorm,
	})
	if err != nil {
		t.Fatal(err)
	}
	upload(t, s, 0, 1, gpucore.Box{Offset: gpucore.Offset3D{X: 1}, Extent: gpucore.Extent3D{Width: 1, Height: 1, Depth: 1}},
		format.RGBA8Unorm, []byte{7, 0, 0, 255})
	if err := s.FlushStagedUpdates(0, 1, 1, 2, 0, nil); err != nil {
		t.Fatal(err)
	}
	if got := len(s.StagedUpdates(0)); got != 3 {
		t.Errorf("staged = %d, want 3", got)
	}

	if err := s.FlushAllStagedUpdates(); err != nil {
		t.Fatal(err)
	}
	if got := read(t, s, 0, 0, box(2, 1), format.None); !bytes.Equal(got, []byte{5, 0, 0, 255, 1, 0, 0, 255}) {
		t.Errorf("layer 0 = %v, want the 2-layer update over the first texel", got)
	}
	if got := read(t, s, 0, 1, box(2, 1), format.None); !bytes.Equal(got, []byte{6, 0, 0, 255, 7, 0, 0, 255}) {
		t.Errorf("layer 1 = %v, want both later updates", got)
	}
	checkDevice(t, dev)
}

func TestFlushSkipsLevelsAndUnallocated(t *testing.T) {
	dev := soft.NewDefault()
	s := image.New(dev, image.Options{})
	err := s.Init(&image.Desc{
		Fallback:   format.DefaultTable().Resolve(format.RGBA8Unorm, format.AccessSampleOnly, dev.Features().Formats),
		Extent:     gpucore.Extent3D{Width: 2, Height: 2, Depth: 1},
		FirstLevel: 1,
		Levels:     2,
		Layers:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	for l := image.GLLevel(0); l < 3; l++ {
		s.StageClear(l, 0, 1, gpucore.AspectColor, image.ClearValue{})
	}
	if err := s.FlushStagedUpdates(0, image.MaxLevels, 0, 1, image.LevelMask(0).With(2), nil); err != nil {
		t.Fatal(err)
	}
	if got := s.LevelsWithStagedUpdates(); got != image.LevelMask(0).With(0).With(2) {
		t.Errorf("LevelsWithStagedUpdates() = %b, want levels 0 and 2", got)
	}
	if got := dev.Count(soft.OpClearColor); got != 1 {
		t.Errorf("clears = %d, want 1", got)
	}
	if !s.HasStagedUpdatesInAllocatedLevels() {
		t.Error("HasStagedUpdatesInAllocatedLevels() = false with level 2 staged")
	}
}

func TestDeferredClear(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGBA8Unorm, 2, 2, 1, 2)
	v := image.ClearValue{Color: format.Color{1, 0, 0, 1}}
	s.StageClear(0, 1, 1, gpucore.AspectColor, v)
	dev.ResetLog()

	var dc image.DeferredClear
	if err := s.FlushStagedUpdates(0, 1, 1, 2, 0, &dc); err != nil {
		t.Fatal(err)
	}
	if !dc.Valid || dc.Value != v || dc.Aspect != gpucore.AspectColor {
		t.Errorf("DeferredClear = %+v, want the staged clear", dc)
	}
	if n := len(dev.Commands()); n != 0 {
		t.Errorf("recorded %d commands, want 0", n)
	}
	if !s.HasDefinedContent(0, 1, 1) {
		t.Error("deferred clear did not mark the layer defined")
	}

	// Anything but a single full clear is recorded.
	s.StageClear(0, 0, 1, gpucore.AspectColor, v)
	upload(t, s, 0, 0, box(1, 1), format.RGBA8Unorm, []byte{0, 0, 0, 0})
	dc = image.DeferredClear{}
	if err := s.FlushStagedUpdates(0, 1, 0, 1, 0, &dc); err != nil {
		t.Fatal(err)
	}
	if dc.Valid {
		t.Error("clear with a following upload was deferred")
	}
}

func TestPartialClearWithDraw(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGBA8Unorm, 2, 1, 1, 1)
	s.StagePartialClear(0, 0, 1, gpucore.Box{Offset: gpucore.Offset3D{X: 1}, Extent: gpucore.Extent3D{Width: 1, Height: 1, Depth: 1}},
		gpucore.AspectColor, image.ClearValue{Color: format.Color{1, 1, 1, 1}})
	if err := s.FlushAllStagedUpdates(); err != nil {
		t.Fatal(err)
	}
	if got := dev.Count(soft.OpClearRegion); got != 1 {
		t.Errorf("draw clears = %d, want 1", got)
	}
	want := []byte{0, 0, 0, 0, 255, 255, 255, 255}
	if got := read(t, s, 0, 0, box(2, 1), format.None); !bytes.Equal(got, want) {
		t.Errorf("ReadPixels() = %v, want %v", got, want)
	}
	checkDevice(t, dev)
}

func TestPartialClearUnsupported(t *testing.T) {
	f := gpucore.DefaultFeatures()
	f.SupportsDrawUtils = false
	dev := soft.New(f)
	s := newStorage(t, dev, format.RGBA8Unorm, 2, 2, 1, 1)
	s.StagePartialClear(0, 0, 1, box(1, 1), gpucore.AspectColor, image.ClearValue{})

	err := s.FlushAllStagedUpdates()
	if !errors.Is(err, gpucore.ErrUnsupported) {
		t.Fatalf("FlushAllStagedUpdates() error = %v, want ErrUnsupported", err)
	}
	if got := len(s.StagedUpdates(0)); got != 1 {
		t.Errorf("staged = %d after failed flush, want 1", got)
	}
}

func TestStageSelfAsSubresourceUpdates(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGBA8Unorm, 2, 2, 2, 1)
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	upload(t, s, 0, 0, box(2, 2), format.RGBA8Unorm, data)
	if err := s.FlushAllStagedUpdates(); err != nil {
		t.Fatal(err)
	}
	old, oldSerial := s.Handle(), s.Serial()

	s.StageSelfAsSubresourceUpdates(0)
	if s.Valid() {
		t.Fatal("storage still has an image")
	}
	if dev.LiveImages() != 1 {
		t.Fatalf("old image destroyed while updates reference it")
	}
	for l := image.GLLevel(0); l < 2; l++ {
		if u := s.StagedUpdates(l); len(u) != 1 || u[0].Kind != image.UpdateImage {
			t.Errorf("level %d staged = %+v, want one image update", l, u)
		}
	}

	if err := s.Init(&image.Desc{
		Fallback: s.Fallback(),
		Extent:   gpucore.Extent3D{Width: 2, Height: 2, Depth: 1},
		Levels:   2,
		Layers:   1,
	}); err != nil {
		t.Fatal(err)
	}
	if s.Handle() == old || s.Serial() == oldSerial {
		t.Error("Init reused the old image identity")
	}
	if err := s.FlushAllStagedUpdates(); err != nil {
		t.Fatal(err)
	}
	if got := dev.Count(soft.OpCopyImage); got != 2 {
		t.Errorf("image copies = %d, want 2", got)
	}
	if dev.LiveImages() != 1 {
		t.Errorf("LiveImages() = %d, want 1 once the copies are flushed", dev.LiveImages())
	}
	if got := read(t, s, 0, 0, box(2, 2), format.None); !bytes.Equal(got, data) {
		t.Errorf("ReadPixels() = %v, want %v", got, data)
	}
	checkDevice(t, dev)
}

func TestStageSelfAllLevelsSkipped(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGBA8Unorm, 2, 2, 1, 1)
	s.StageSelfAsSubresourceUpdates(image.LevelMask(0).With(0))
	if dev.LiveImages() != 0 {
		t.Errorf("LiveImages() = %d, want 0 when no update references the image", dev.LiveImages())
	}
}

// ===== Barriers =====

func TestReadBarriers(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGBA8Unorm, 1, 1, 1, 1)
	cmd, err := dev.OutsideRenderPassCommandBuffer(&gpucore.Access{})
	if err != nil {
		t.Fatal(err)
	}
	steps := []struct {
		name     string
		layout   layout.ImageLayout
		barriers int
	}{
		{"first fragment read", layout.FragmentShaderReadOnly, 1},
		{"repeated fragment read", layout.FragmentShaderReadOnly, 1},
		{"compute read joins", layout.ComputeShaderReadOnly, 2},
		{"compute read again", layout.ComputeShaderReadOnly, 2},
		{"fragment read covered", layout.FragmentShaderReadOnly, 2},
	}
	for _, st := range steps {
		s.RecordReadBarrier(cmd, gpucore.AspectColor, st.layout, 0, 1, 0, 1)
		if got := dev.Count(soft.OpBarrier); got != st.barriers {
			t.Errorf("%s: barriers = %d, want %d", st.name, got, st.barriers)
		}
	}

	s.RecordWriteBarrier(cmd, gpucore.AspectColor, layout.TransferDst, 0, 1, 0, 1)
	log := dev.Commands()
	last := log[len(log)-1]
	want := gpucore.StageFragmentShader | gpucore.StageComputeShader
	if last.Op != soft.OpBarrier || last.SrcStage&want != want {
		t.Errorf("write barrier src stages = %b, want %b included", last.SrcStage, want)
	}
	if s.CurrentLayout() != layout.TransferDst {
		t.Errorf("CurrentLayout() = %v, want TransferDst", s.CurrentLayout())
	}
	if !s.IsWriteBarrierNecessary(layout.TransferDst, 0, 1, 0, 1) {
		t.Error("IsWriteBarrierNecessary() = false for a layer written since the last barrier")
	}
	checkDevice(t, dev)
}

func TestBarrierOutOfRangePanics(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGBA8Unorm, 1, 1, 1, 2)
	cmd, _ := dev.OutsideRenderPassCommandBuffer(&gpucore.Access{})
	defer func() {
		if recover() == nil {
			t.Error("barrier on layer 2 of a 2-layer image did not panic")
		}
	}()
	s.RecordWriteBarrier(cmd, gpucore.AspectColor, layout.TransferDst, 0, 1, 2, 1)
}

// ===== External ownership =====

func importForeign(t *testing.T, dev *soft.Device) *image.Storage {
	t.Helper()
	s := image.New(dev, image.Options{})
	err := s.InitExternal(&image.Desc{
		Fallback: format.DefaultTable().Resolve(format.RGBA8Unorm, format.AccessSampleOnly, dev.Features().Formats),
		Extent:   gpucore.Extent3D{Width: 1, Height: 1, Depth: 1},
		Levels:   1,
		Layers:   1,
	}, gpucore.ExternalMemory{Handle: 3, Size: 4, Foreign: true}, layout.Undefined)
	if err != nil {
		t.Fatalf("InitExternal() error = %v", err)
	}
	return s
}

func TestForeignImageMustBeAcquired(t *testing.T) {
	dev := soft.NewDefault()
	s := importForeign(t, dev)
	cmd, _ := dev.OutsideRenderPassCommandBuffer(&gpucore.Access{})

	if s.CurrentLayout() != layout.ForeignAccess || s.QueueFamily() != gpucore.QueueFamilyForeign {
		t.Fatalf("layout %v family %d, want ForeignAccess and the foreign family", s.CurrentLayout(), s.QueueFamily())
	}
	if !s.IsExternal() || !s.HasDefinedContent(0, 0, 1) {
		t.Error("imported image not external or content undefined")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("barrier before acquire did not panic")
			}
		}()
		s.RecordReadBarrier(cmd, gpucore.AspectColor, layout.FragmentShaderReadOnly, 0, 1, 0, 1)
	}()

	s.AcquireFromExternal(cmd, layout.FragmentShaderReadOnly)
	if s.QueueFamily() != image.LocalQueueFamily {
		t.Errorf("QueueFamily() = %d after acquire, want local", s.QueueFamily())
	}
	log := dev.Commands()
	if len(log) != 1 || log[0].Barrier.SrcQueueFamily != gpucore.QueueFamilyForeign {
		t.Fatalf("log = %v, want one ownership barrier from the foreign family", log)
	}
	// Already in the read layout.
	s.RecordReadBarrier(cmd, gpucore.AspectColor, layout.FragmentShaderReadOnly, 0, 1, 0, 1)
	if got := dev.Count(soft.OpBarrier); got != 1 {
		t.Errorf("barriers = %d, want 1", got)
	}
	checkDevice(t, dev)
}

func TestReleaseAndReacquire(t *testing.T) {
	dev := soft.NewDefault()
	s := newStorage(t, dev, format.RGBA8Unorm, 1, 1, 1, 1)
	cmd, _ := dev.OutsideRenderPassCommandBuffer(&gpucore.Access{})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("acquire of a locally owned image did not panic")
			}
		}()
		s.AcquireFromExternal(cmd, layout.FragmentShaderReadOnly)
	}()

	s.ReleaseToExternal(cmd, gpucore.QueueFamilyExternal, layout.ExternalShadersReadOnly)
	if !s.IsReleasedToExternal() || s.QueueFamily() != gpucore.QueueFamilyExternal {
		t.Errorf("released = %v family = %d", s.IsReleasedToExternal(), s.QueueFamily())
	}
	s.AcquireFromExternal(cmd, layout.TransferDst)
	if s.IsReleasedToExternal() || s.CurrentLayout() != layout.TransferDst {
		t.Errorf("after acquire: released = %v layout = %v", s.IsReleasedToExternal(), s.CurrentLayout())
	}
	checkDevice(t, dev)
}
