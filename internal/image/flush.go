package image

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/layout"
)

// DeferredClear receives a clear moved to a render pass load op.
type DeferredClear struct {
	Valid  bool
	Aspect gpucore.Aspect
	Value  ClearValue
}

// FlushStagedUpdates records the updates staged for levels
// [levelStart, levelEnd) and layers [layerStart, layerEnd) and removes them
// from the queue.
//
// Updates of levels in skipLevels or outside the allocated range stay
// staged, and so do updates of layers outside the range. When deferred is
// not nil and the range is one level and one layer whose only update is a
// full clear, the clear is handed to the caller instead of recorded.
func (s *Storage) FlushStagedUpdates(levelStart, levelEnd GLLevel, layerStart, layerEnd uint32, skipLevels LevelMask, deferred *DeferredClear) error {
	if !s.Valid() {
		return ErrInvalidStorage
	}
	if !s.HasStagedUpdatesInLevels(levelStart, levelEnd) {
		return nil
	}
	levelStart = max(levelStart, s.firstAllocatedLevel)
	levelEnd = min(levelEnd, s.LastAllocatedLevel()+1, MaxLevels)
	layerEnd = min(layerEnd, s.layers)

	if deferred != nil && levelEnd-levelStart == 1 && layerEnd-layerStart == 1 && !skipLevels.Has(levelStart) {
		if u, ok := s.takeSingleFullClear(levelStart, layerStart, s.Aspects()); ok {
			*deferred = DeferredClear{Valid: true, Aspect: u.Aspect, Value: u.Clear}
			s.RestoreContent(s.ToVkLevel(levelStart), layerStart, 1, u.Aspect)
			s.log.Debug("clear deferred to load op", "handle", s.handle, "level", levelStart, "layer", layerStart)
			return nil
		}
	}

	s.RemoveSupersededUpdates(skipLevels)

	for level := levelStart; level < levelEnd; level++ {
		if skipLevels.Has(level) || len(s.updates[level]) == 0 {
			continue
		}
		if err := s.flushLevel(level, layerStart, layerEnd); err != nil {
			return err
		}
	}
	return nil
}

// FlushAllStagedUpdates flushes every allocated level and layer.
func (s *Storage) FlushAllStagedUpdates() error {
	return s.FlushStagedUpdates(0, MaxLevels, 0, s.layers, 0, nil)
}

// layerSpan is a half-open layer range.
type layerSpan struct{ start, end uint32 }

func (s *Storage) flushLevel(level GLLevel, layerStart, layerEnd uint32) error {
	vk := s.ToVkLevel(level)
	q := s.updates[level]
	s.updates[level] = nil

	var (
		keep []Update
		kept []layerSpan
	)
	// An update stays staged when it misses the layer range or overlaps an
	// earlier update that stays staged, so per-layer order is preserved.
	blocked := func(u *Update) bool {
		if !u.intersectsLayers(layerStart, layerEnd) {
			return true
		}
		for _, k := range kept {
			if u.intersectsLayers(k.start, k.end) {
				return true
			}
		}
		return false
	}

	for i := range q {
		u := &q[i]
		if blocked(u) {
			keep = append(keep, *u)
			kept = append(kept, layerSpan{u.Layer, u.Layer + u.LayerCount})
			continue
		}
		if err := s.flushUpdate(vk, u, i == 0); err != nil {
			// Unflushed updates stay staged.
			s.updates[level] = append(keep, q[i:]...)
			return err
		}
		s.stagedBufferBytes[level] -= u.stagedBytes()
		u.release()
	}
	s.updates[level] = keep
	return nil
}

func (s *Storage) flushUpdate(vk VkLevel, u *Update, first bool) error {
	if u.Layer+u.LayerCount > s.layers {
		panic(fmt.Sprintf("image: update of layers [%d,%d) on a %d-layer image", u.Layer, u.Layer+u.LayerCount, s.layers))
	}
	r := gpucore.SubresourceRange{
		Aspect:     u.Aspect,
		BaseLevel:  uint32(vk),
		LevelCount: 1,
		BaseLayer:  u.Layer,
		LayerCount: u.LayerCount,
	}
	s.log.Debug("flush update", "handle", s.handle, "kind", u.Kind, "level", u.Level, "layer", u.Layer, "layers", u.LayerCount)

	switch u.Kind {
	case UpdateClear:
		return s.flushClear(r, u.Clear)
	case UpdateClearPartial:
		if err := s.flushClearRegion(vk, u, u.Clear.Mask); err != nil {
			return err
		}
	case UpdateClearEmulatedChannelsOnly:
		return s.flushEmulatedClear(vk, u, r, first)
	case UpdateBuffer:
		if err := s.flushBufferCopy(vk, u, r); err != nil {
			return err
		}
	case UpdateImage:
		if err := s.flushImageCopy(vk, u, r); err != nil {
			return err
		}
	}
	s.RestoreContent(vk, u.Layer, u.LayerCount, u.Aspect)
	return nil
}

func (s *Storage) transferCommands(r gpucore.SubresourceRange, prep func(*gpucore.Access)) (gpucore.CommandBuffer, error) {
	var acc gpucore.Access
	acc.OnImageTransferWrite(s.handle, r)
	if prep != nil {
		prep(&acc)
	}
	return s.dev.OutsideRenderPassCommandBuffer(&acc)
}

func (s *Storage) flushClear(r gpucore.SubresourceRange, v ClearValue) error {
	cmd, err := s.transferCommands(r, nil)
	if err != nil {
		return err
	}
	s.RecordWriteBarrier(cmd, r.Aspect, layout.TransferDst, VkLevel(r.BaseLevel), 1, r.BaseLayer, r.LayerCount)
	if r.Aspect&gpucore.AspectColor != 0 {
		cmd.ClearColorImage(s.handle, gpucore.LayoutTransferDstOptimal, v.Color, r)
	} else {
		cmd.ClearDepthStencilImage(s.handle, gpucore.LayoutTransferDstOptimal, v.Depth, v.Stencil, r)
	}
	s.RestoreContent(VkLevel(r.BaseLevel), r.BaseLayer, r.LayerCount, r.Aspect)
	return nil
}

// flushClearRegion clears a box of each layer with a draw.
func (s *Storage) flushClearRegion(vk VkLevel, u *Update, mask uint8) error {
	if !s.dev.Features().SupportsDrawUtils {
		return fmt.Errorf("%w: draw clear of %v", gpucore.ErrUnsupported, s.fallback.Actual)
	}
	r := gpucore.SubresourceRange{Aspect: u.Aspect, BaseLevel: uint32(vk), LevelCount: 1, BaseLayer: u.Layer, LayerCount: u.LayerCount}
	var acc gpucore.Access
	acc.OnImageDrawWrite(s.handle, r)
	cmd, err := s.dev.OutsideRenderPassCommandBuffer(&acc)
	if err != nil {
		return err
	}
	s.RecordWriteBarrier(cmd, u.Aspect, layout.ColorWrite, vk, 1, u.Layer, u.LayerCount)
	for layer := u.Layer; layer < u.Layer+u.LayerCount; layer++ {
		err := s.dev.Utils().ClearRegion(cmd, gpucore.ClearRegionParams{
			Image:  s.handle,
			Format: s.fallback.Actual,
			Level:  uint32(vk),
			Layer:  layer,
			Box:    u.Box,
			Color:  u.Clear.Color,
			Mask:   mask,
		})
		if err != nil {
			return fmt.Errorf("image: clear region: %w", err)
		}
	}
	return nil
}

// flushEmulatedClear sets the emulated components. With nothing written
// before it, a plain clear to the defaults is equivalent and cheaper.
func (s *Storage) flushEmulatedClear(vk VkLevel, u *Update, r gpucore.SubresourceRange, first bool) error {
	info := format.Get(s.fallback.Actual)
	if first && !s.HasDefinedContent(vk, u.Layer, u.LayerCount) && !s.HasDefinedStencilContent(vk, u.Layer, u.LayerCount) {
		r.Aspect = s.Aspects()
		c := s.fallback.EmulatedDefault()
		return s.flushClearNoContent(r, ClearValue{Color: c, Depth: c[0], Stencil: uint32(c[1])})
	}
	if info.HasDepthOrStencil() {
		// Only stencil is ever emulated for depth formats.
		r.Aspect = gpucore.AspectStencil
		return s.flushClearNoContent(r, ClearValue{Stencil: u.Clear.Stencil})
	}
	return s.flushClearRegion(vk, u, u.Clear.Mask)
}

// flushClearNoContent clears without marking the contents defined.
func (s *Storage) flushClearNoContent(r gpucore.SubresourceRange, v ClearValue) error {
	c := s.content[r.BaseLevel]
	sc := s.stencilContent[r.BaseLevel]
	if err := s.flushClear(r, v); err != nil {
		return err
	}
	s.content[r.BaseLevel] = c
	s.stencilContent[r.BaseLevel] = sc
	return nil
}

func (s *Storage) flushBufferCopy(vk VkLevel, u *Update, r gpucore.SubresourceRange) error {
	if u.Buffer.Format != s.fallback.Actual {
		panic(fmt.Sprintf("image: %v buffer update staged for a %v image", u.Buffer.Format, s.fallback.Actual))
	}
	buf := u.Buffer.Buffer.Get()
	cmd, err := s.transferCommands(r, func(acc *gpucore.Access) { acc.OnBufferTransferRead(buf) })
	if err != nil {
		return err
	}
	s.RecordWriteBarrier(cmd, u.Aspect, layout.TransferDst, vk, 1, u.Layer, u.LayerCount)
	cmd.CopyBufferToImage(buf, s.handle, gpucore.LayoutTransferDstOptimal, gpucore.BufferImageCopy{
		BufferOffset: u.Buffer.Offset,
		RowLength:    u.Buffer.RowLength,
		ImageHeight:  u.Buffer.ImageHeight,
		Aspect:       u.Aspect,
		Level:        uint32(vk),
		BaseLayer:    u.Layer,
		LayerCount:   u.LayerCount,
		Offset:       u.Box.Offset,
		Extent:       u.Box.Extent,
	})
	return nil
}

func (s *Storage) flushImageCopy(vk VkLevel, u *Update, r gpucore.SubresourceRange) error {
	src := u.Image.Image.Get()
	srcRange := gpucore.SubresourceRange{
		Aspect:     u.Aspect,
		BaseLevel:  uint32(u.Image.Level),
		LevelCount: 1,
		BaseLayer:  u.Image.Layer,
		LayerCount: u.LayerCount,
	}
	cmd, err := s.transferCommands(r, func(acc *gpucore.Access) { acc.OnImageTransferRead(src.handle, srcRange) })
	if err != nil {
		return err
	}
	src.RecordReadBarrier(cmd, u.Aspect, layout.TransferSrc, u.Image.Level, 1, u.Image.Layer, u.LayerCount)
	s.RecordWriteBarrier(cmd, u.Aspect, layout.TransferDst, vk, 1, u.Layer, u.LayerCount)
	cmd.CopyImage(src.handle, gpucore.LayoutTransferSrcOptimal, s.handle, gpucore.LayoutTransferDstOptimal, gpucore.ImageCopy{
		Aspect:     u.Aspect,
		SrcLevel:   uint32(u.Image.Level),
		SrcLayer:   u.Image.Layer,
		DstLevel:   uint32(vk),
		DstLayer:   u.Layer,
		LayerCount: u.LayerCount,
		SrcOffset:  u.Image.Offset,
		DstOffset:  u.Box.Offset,
		Extent:     u.Box.Extent,
	})
	return nil
}
