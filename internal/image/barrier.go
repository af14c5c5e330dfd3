package image

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/layout"
)

// maxParallelLayerWrites is the number of layers writes are tracked for
// before every write needs a barrier.
const maxParallelLayerWrites = 64

// layerWriteMask returns layers [start, start+count) hashed onto 64 bits.
func layerWriteMask(start, count uint32) uint64 {
	if count >= maxParallelLayerWrites {
		return ^uint64(0)
	}
	m := uint64(1)<<count - 1
	return bits.RotateLeft64(m, int(start%maxParallelLayerWrites))
}

// IsReadBarrierNecessary reports whether reading the image in newLayout
// needs a barrier. Reads after reads in the same layout do not.
func (s *Storage) IsReadBarrierNecessary(newLayout layout.ImageLayout) bool {
	if s.currentLayout != newLayout {
		return true
	}
	return !s.currentLayout.ReadOnly()
}

// IsWriteBarrierNecessary reports whether writing the subresources in
// newLayout needs a barrier. Writes in the same layout to layers not
// written since the last barrier do not.
func (s *Storage) IsWriteBarrierNecessary(newLayout layout.ImageLayout, levelStart VkLevel, levelCount, layerStart, layerCount uint32) bool {
	if s.currentLayout != newLayout || s.currentLayout.ReadOnly() {
		return true
	}
	if layerCount >= maxParallelLayerWrites {
		return true
	}
	mask := layerWriteMask(layerStart, layerCount)
	for l := uint32(levelStart); l < uint32(levelStart)+levelCount; l++ {
		if s.written[l]&mask != 0 {
			return true
		}
	}
	return false
}

// RecordReadBarrier records the barrier needed before the subresources
// are read in newLayout.
func (s *Storage) RecordReadBarrier(cmd gpucore.CommandBuffer, aspect gpucore.Aspect, newLayout layout.ImageLayout, levelStart VkLevel, levelCount, layerStart, layerCount uint32) {
	s.checkUsable()
	s.checkRange(levelStart, levelCount, layerStart, layerCount)
	if !s.IsReadBarrierNecessary(newLayout) {
		return
	}
	s.barrier(cmd, aspect, newLayout)
}

// RecordWriteBarrier records the barrier needed before the subresources
// are written in newLayout and marks them written.
func (s *Storage) RecordWriteBarrier(cmd gpucore.CommandBuffer, aspect gpucore.Aspect, newLayout layout.ImageLayout, levelStart VkLevel, levelCount, layerStart, layerCount uint32) {
	s.checkUsable()
	s.checkRange(levelStart, levelCount, layerStart, layerCount)
	if s.IsWriteBarrierNecessary(newLayout, levelStart, levelCount, layerStart, layerCount) {
		s.barrier(cmd, aspect, newLayout)
	}
	mask := layerWriteMask(layerStart, layerCount)
	for l := uint32(levelStart); l < uint32(levelStart)+levelCount; l++ {
		s.written[l] |= mask
	}
}

// barrier transitions the whole image from the tracked layout to
// newLayout.
func (s *Storage) barrier(cmd gpucore.CommandBuffer, aspect gpucore.Aspect, newLayout layout.ImageLayout) {
	r := s.fullRange()
	r.Aspect |= aspect

	if layout.CanShareReadStages(s.currentLayout, newLayout) {
		nd := newLayout.Get()
		if s.readStages&nd.DstStage == nd.DstStage {
			return
		}
		// Another read stage joins: make the last write visible to it
		// without changing the layout.
		wd := s.lastWriteLayout.Get()
		b := gpucore.ImageBarrier{
			Image:          s.handle,
			SrcAccess:      wd.SrcAccess,
			DstAccess:      nd.DstAccess,
			OldLayout:      s.currentLayout.Native(),
			NewLayout:      s.currentLayout.Native(),
			SrcQueueFamily: gpucore.QueueFamilyIgnored,
			DstQueueFamily: gpucore.QueueFamilyIgnored,
			Range:          r,
		}
		cmd.PipelineBarrier(wd.SrcStage, nd.DstStage, b)
		s.readStages |= nd.DstStage
		s.currentLayout = newLayout
		return
	}

	src, dst, b := layout.Barrier(s.currentLayout, newLayout, s.readStages)
	b.Image = s.handle
	b.Range = r
	cmd.PipelineBarrier(src, dst, b)

	s.log.Debug("image barrier", "handle", s.handle, "from", s.currentLayout, "to", newLayout)

	if newLayout.ReadOnly() {
		if !s.currentLayout.ReadOnly() {
			s.lastWriteLayout = s.currentLayout
		}
		s.readStages = newLayout.Get().DstStage
	} else {
		s.readStages = 0
	}
	s.currentLayout = newLayout
	s.written = [MaxLevels]uint64{}
}

func (s *Storage) checkUsable() {
	if !s.Valid() {
		panic("image: barrier on a storage without an image")
	}
	if s.currentLayout == layout.ForeignAccess {
		panic("image: image is owned by a foreign queue and must be acquired first")
	}
}

func (s *Storage) checkRange(levelStart VkLevel, levelCount, layerStart, layerCount uint32) {
	if uint32(levelStart)+levelCount > s.levels || layerStart+layerCount > s.layers {
		panic(fmt.Sprintf("image: subresource levels [%d,%d) layers [%d,%d) out of range (%d levels, %d layers)",
			levelStart, uint32(levelStart)+levelCount, layerStart, layerStart+layerCount, s.levels, s.layers))
	}
}
