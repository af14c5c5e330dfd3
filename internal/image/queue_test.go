package image

import (
	"testing"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// ===== Masks =====

func TestLevelRange(t *testing.T) {
	tests := []struct {
		start, end GLLevel
		want       LevelMask
	}{
		{0, 0, 0},
		{0, 1, 0b1},
		{1, 4, 0b1110},
		{3, 2, 0},
		{0, MaxLevels, 0xffff},
	}
	for _, tt := range tests {
		if got := LevelRange(tt.start, tt.end); got != tt.want {
			t.Errorf("LevelRange(%d, %d) = %b, want %b", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestLevelMask(t *testing.T) {
	m := LevelMask(0).With(2).With(5)
	if !m.Has(2) || !m.Has(5) || m.Has(3) {
		t.Errorf("mask %b has wrong members", m)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}
	if m = m.Without(2).Without(5); m.Any() {
		t.Errorf("Any() = true for %b", m)
	}
}

func TestLayerWriteMask(t *testing.T) {
	tests := []struct {
		name         string
		start, count uint32
		want         uint64
	}{
		{"single", 3, 1, 1 << 3},
		{"range", 0, 4, 0b1111},
		{"wraps at 64", 62, 4, 0b11 | 0b11<<62},
		{"hashes past 64", 65, 1, 1 << 1},
		{"whole", 0, 64, ^uint64(0)},
		{"more than 64", 10, 100, ^uint64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := layerWriteMask(tt.start, tt.count); got != tt.want {
				t.Errorf("layerWriteMask(%d, %d) = %b, want %b", tt.start, tt.count, got, tt.want)
			}
		})
	}
}

func TestContentMask(t *testing.T) {
	tests := []struct {
		start, count uint32
		want         uint8
	}{
		{0, 1, 0b1},
		{2, 3, 0b11100},
		{6, 4, 0b11000000},
		{8, 1, 0},
		{0, 8, 0xff},
	}
	for _, tt := range tests {
		if got := contentMask(tt.start, tt.count); got != tt.want {
			t.Errorf("contentMask(%d, %d) = %b, want %b", tt.start, tt.count, got, tt.want)
		}
	}
}

func TestContentTracking(t *testing.T) {
	s := New(nil, Options{})
	if s.HasDefinedContent(0, 0, 1) {
		t.Error("fresh storage has defined content")
	}
	s.RestoreContent(0, 1, 2, gpucore.AspectColor)
	if !s.HasDefinedContent(0, 2, 1) {
		t.Error("layer 2 not defined after RestoreContent")
	}
	if !s.InvalidateContent(0, 1, 2, gpucore.AspectColor) {
		t.Error("InvalidateContent of tracked layers returned false")
	}
	if s.HasDefinedContent(0, 0, 4) {
		t.Error("layers defined after InvalidateContent")
	}
	if s.InvalidateContent(0, 9, 1, gpucore.AspectColor) {
		t.Error("InvalidateContent of untracked layer returned true")
	}
	// Layers past the tracked range always count as defined.
	if !s.HasDefinedContent(0, 6, 4) {
		t.Error("untracked layers reported undefined")
	}
	s.RestoreContent(1, 0, 1, gpucore.AspectStencil)
	if s.HasDefinedContent(1, 0, 1) || !s.HasDefinedStencilContent(1, 0, 1) {
		t.Error("stencil content leaked into depth content")
	}
}

// ===== Update queue =====

func fullBox(w, h uint32) gpucore.Box {
	return gpucore.Box{Extent: gpucore.Extent3D{Width: w, Height: h, Depth: 1}}
}

func bufferSource(size uint64, released *int) BufferSource {
	return BufferSource{
		Buffer: NewRefCounted(gpucore.BufferHandle(1), func(gpucore.BufferHandle) { *released++ }),
		Format: format.RGBA8Unorm,
		Size:   size,
	}
}

func TestRefCounted(t *testing.T) {
	released := 0
	r := NewRefCounted(7, func(v int) {
		if v != 7 {
			t.Errorf("release value = %d, want 7", v)
		}
		released++
	})
	r.AddRef()
	r.AddRef()
	r.Release()
	if released != 0 {
		t.Fatal("released with a live reference")
	}
	r.Release()
	if released != 1 {
		t.Errorf("released = %d, want 1", released)
	}
	defer func() {
		if recover() == nil {
			t.Error("extra Release did not panic")
		}
	}()
	r.Release()
}

func TestPruneSupersededUpdates(t *testing.T) {
	released := 0
	s := New(nil, Options{PruneThreshold: 100})

	s.StageBufferUpdate(0, 0, 1, fullBox(4, 4), gpucore.AspectColor, bufferSource(64, &released))
	s.StageBufferUpdate(0, 0, 1, gpucore.Box{Extent: gpucore.Extent3D{Width: 2, Height: 2, Depth: 1}}, gpucore.AspectColor, bufferSource(16, &released))
	if got := len(s.StagedUpdates(0)); got != 2 {
		t.Fatalf("staged = %d, want 2", got)
	}
	if got := s.StagedBufferBytes(0); got != 80 {
		t.Errorf("StagedBufferBytes() = %d, want 80", got)
	}

	// Crossing the threshold drops both earlier updates: the last one
	// covers the whole level.
	s.StageBufferUpdate(0, 0, 1, fullBox(4, 4), gpucore.AspectColor, bufferSource(64, &released))
	if got := len(s.StagedUpdates(0)); got != 1 {
		t.Fatalf("staged after prune = %d, want 1", got)
	}
	if released != 2 {
		t.Errorf("released buffers = %d, want 2", released)
	}
	if got := s.StagedBufferBytes(0); got != 64 {
		t.Errorf("StagedBufferBytes() = %d, want 64", got)
	}
}

func TestPruneKeepsPartialOverlap(t *testing.T) {
	released := 0
	s := New(nil, Options{})
	s.StageBufferUpdate(0, 0, 1, fullBox(4, 4), gpucore.AspectColor, bufferSource(64, &released))
	// Partial, masked and other-layer updates never supersede it.
	s.StageBufferUpdate(0, 0, 1, gpucore.Box{Offset: gpucore.Offset3D{X: 2}, Extent: gpucore.Extent3D{Width: 4, Height: 4, Depth: 1}}, gpucore.AspectColor, bufferSource(64, &released))
	s.StagePartialClear(0, 0, 1, fullBox(4, 4), gpucore.AspectColor, ClearValue{Mask: 0b1000})
	s.StageClear(0, 1, 1, gpucore.AspectColor, ClearValue{})

	s.RemoveSupersededUpdates(0)
	if got := len(s.StagedUpdates(0)); got != 4 {
		t.Errorf("staged = %d, want 4", got)
	}
	if released != 0 {
		t.Errorf("released = %d, want 0", released)
	}

	// A full clear of layer 0 supersedes every layer-0 update before it.
	s.StageClear(0, 0, 1, gpucore.AspectColor, ClearValue{})
	s.RemoveSupersededUpdates(0)
	got := s.StagedUpdates(0)
	if len(got) != 2 || got[0].Layer != 1 || got[1].Kind != UpdateClear || got[1].Layer != 0 {
		t.Errorf("staged = %+v, want layer-1 clear then layer-0 clear", got)
	}
	if released != 2 {
		t.Errorf("released = %d, want 2", released)
	}
}

func TestPruneSkipsLevels(t *testing.T) {
	s := New(nil, Options{})
	for l := GLLevel(0); l < 2; l++ {
		s.StageClear(l, 0, 1, gpucore.AspectColor, ClearValue{})
		s.StageClear(l, 0, 1, gpucore.AspectColor, ClearValue{})
	}
	s.RemoveSupersededUpdates(LevelMask(0).With(1))
	if got := len(s.StagedUpdates(0)); got != 1 {
		t.Errorf("level 0 staged = %d, want 1", got)
	}
	if got := len(s.StagedUpdates(1)); got != 2 {
		t.Errorf("skipped level 1 staged = %d, want 2", got)
	}
}

func TestRemoveStagedUpdates(t *testing.T) {
	released := 0
	s := New(nil, Options{})
	s.StageBufferUpdate(1, 0, 1, fullBox(2, 2), gpucore.AspectColor, bufferSource(16, &released))
	s.StageBufferUpdate(1, 2, 2, fullBox(2, 2), gpucore.AspectColor, bufferSource(16, &released))
	s.StageClear(3, 0, 1, gpucore.AspectColor, ClearValue{})

	if got := s.LevelsWithStagedUpdates(); got != LevelMask(0).With(1).With(3) {
		t.Errorf("LevelsWithStagedUpdates() = %b", got)
	}
	if !s.HasStagedUpdatesForSubresource(1, 3, 1) {
		t.Error("HasStagedUpdatesForSubresource(1, 3, 1) = false")
	}
	if s.HasStagedUpdatesForSubresource(1, 1, 1) {
		t.Error("HasStagedUpdatesForSubresource(1, 1, 1) = true")
	}
	if !s.HasBufferSourcedStagedUpdatesInAllLevels() {
		t.Error("HasBufferSourcedStagedUpdatesInAllLevels() = false")
	}

	s.RemoveSingleSubresourceStagedUpdates(1, 0, 1)
	if got := len(s.StagedUpdates(1)); got != 1 || released != 1 {
		t.Errorf("after single removal: staged = %d released = %d, want 1 and 1", got, released)
	}
	// The 2-layer update is not a single-subresource update of layer 2.
	s.RemoveSingleSubresourceStagedUpdates(1, 2, 1)
	if got := len(s.StagedUpdates(1)); got != 1 {
		t.Errorf("multi-layer update removed: staged = %d", got)
	}

	s.RemoveStagedUpdates(0, 2)
	if s.HasStagedUpdatesInLevels(0, 2) || released != 2 {
		t.Errorf("levels 0-1 still staged or buffer not released (%d)", released)
	}
	if !s.HasStagedUpdatesInLevels(2, 4) {
		t.Error("level 3 update removed")
	}
	s.ReleaseStagedUpdates()
	if s.LevelsWithStagedUpdates().Any() {
		t.Error("updates left after ReleaseStagedUpdates")
	}
}

func TestFlushWithoutImage(t *testing.T) {
	s := New(nil, Options{})
	s.StageClear(0, 0, 1, gpucore.AspectColor, ClearValue{})
	if err := s.FlushAllStagedUpdates(); err != ErrInvalidStorage {
		t.Errorf("FlushAllStagedUpdates() error = %v, want ErrInvalidStorage", err)
	}
	if got := len(s.StagedUpdates(0)); got != 1 {
		t.Errorf("staged = %d, want 1", got)
	}
}

func TestStagedLevelOutOfRangePanics(t *testing.T) {
	s := New(nil, Options{})
	defer func() {
		if recover() == nil {
			t.Error("staging level 16 did not panic")
		}
	}()
	s.StageClear(MaxLevels, 0, 1, gpucore.AspectColor, ClearValue{})
}

func TestClearValueFor(t *testing.T) {
	tbl := format.DefaultTable()
	fb := tbl.Resolve(format.RGB8Unorm, format.AccessRenderable, format.DefaultSupport())
	v := ClearValueFor(fb, format.Color{0.5, 0.25, 1, 0})
	if v.Color[3] != 1 {
		t.Errorf("emulated alpha = %v, want 1", v.Color[3])
	}
	if v.Color[0] != 0.5 {
		t.Errorf("red = %v, want 0.5", v.Color[0])
	}

	ds := tbl.Resolve(format.D24UnormS8Uint, format.AccessRenderable, format.DefaultSupport())
	v = ClearValueFor(ds, format.Color{0.75, 3})
	if v.Depth != 0.75 || v.Stencil != 3 {
		t.Errorf("depth, stencil = %v, %v, want 0.75, 3", v.Depth, v.Stencil)
	}
}
