package image

import (
	"fmt"

	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/layout"
)

// LocalQueueFamily is the queue family the engine records on.
const LocalQueueFamily gpucore.QueueFamily = 0

// InitExternal adopts an image backed by imported memory. Foreign memory
// starts owned by the foreign queue in the ForeignAccess layout and must
// be acquired before use; otherwise the image starts in initial with its
// contents treated as defined.
func (s *Storage) InitExternal(desc *Desc, mem gpucore.ExternalMemory, initial layout.ImageLayout) error {
	if s.Valid() {
		panic("image: InitExternal on a storage that already has an image")
	}
	h, err := s.dev.ImportImage(s.imageDesc(desc), mem)
	if err != nil {
		return fmt.Errorf("image: import %q: %w", desc.Label, err)
	}
	s.adopt(h, desc)
	s.external = true
	if mem.Foreign {
		s.currentLayout = layout.ForeignAccess
		s.queueFamily = gpucore.QueueFamilyForeign
	} else {
		s.currentLayout = initial
		s.queueFamily = LocalQueueFamily
	}
	for l := range s.levels {
		s.content[l] = ^uint8(0)
		s.stencilContent[l] = ^uint8(0)
	}
	s.log.Debug("image imported", "label", desc.Label, "handle", h, "foreign", mem.Foreign)
	return nil
}

// AcquireFromExternal takes ownership of the image back from the queue
// family it was released to and transitions it to newLayout.
func (s *Storage) AcquireFromExternal(cmd gpucore.CommandBuffer, newLayout layout.ImageLayout) {
	if !s.Valid() {
		panic("image: acquire on a storage without an image")
	}
	if !s.queueFamily.IsExternal() {
		panic(fmt.Sprintf("image: acquire from queue family %d, image is not externally owned", s.queueFamily))
	}
	s.ownershipBarrier(cmd, s.queueFamily, LocalQueueFamily, newLayout)
	s.queueFamily = LocalQueueFamily
	s.released = false
}

// ReleaseToExternal hands the image to an external or foreign queue
// family in newLayout.
func (s *Storage) ReleaseToExternal(cmd gpucore.CommandBuffer, to gpucore.QueueFamily, newLayout layout.ImageLayout) {
	s.checkUsable()
	if !to.IsExternal() {
		panic(fmt.Sprintf("image: release to non-external queue family %d", to))
	}
	s.ownershipBarrier(cmd, LocalQueueFamily, to, newLayout)
	s.queueFamily = to
	s.released = true
}

// IsReleasedToExternal reports whether the image was released and not
// yet reacquired.
func (s *Storage) IsReleasedToExternal() bool { return s.released }

func (s *Storage) ownershipBarrier(cmd gpucore.CommandBuffer, from, to gpucore.QueueFamily, newLayout layout.ImageLayout) {
	src, dst, b := layout.Barrier(s.currentLayout, newLayout, s.readStages)
	b.Image = s.handle
	b.Range = s.fullRange()
	b.SrcQueueFamily = from
	b.DstQueueFamily = to
	cmd.PipelineBarrier(src, dst, b)

	s.log.Debug("image ownership transfer", "handle", s.handle, "from", from, "to", to, "layout", newLayout)

	s.currentLayout = newLayout
	s.readStages = 0
	if newLayout.ReadOnly() {
		s.readStages = newLayout.Get().DstStage
	}
	s.written = [MaxLevels]uint64{}
}
