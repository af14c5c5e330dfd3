package image

import "github.com/gogpu/glvk/gpucore"

// maxContentDefinedLayers is the number of layers per level whose content
// state is tracked. Layers past it are always considered defined.
const maxContentDefinedLayers = 8

// contentMask returns the tracked bits of layers [start, start+count).
func contentMask(start, count uint32) uint8 {
	if start >= maxContentDefinedLayers {
		return 0
	}
	end := min(start+count, maxContentDefinedLayers)
	return uint8((uint32(1)<<end - 1) &^ (uint32(1)<<start - 1))
}

// InvalidateContent marks the subresources of aspect as having undefined
// contents. It reports false when the layers are past the tracked range
// and the invalidation has no effect.
func (s *Storage) InvalidateContent(level VkLevel, layer, layerCount uint32, aspect gpucore.Aspect) bool {
	m := contentMask(layer, layerCount)
	if m == 0 {
		return false
	}
	if aspect&(gpucore.AspectColor|gpucore.AspectDepth) != 0 {
		s.content[level] &^= m
	}
	if aspect&gpucore.AspectStencil != 0 {
		s.stencilContent[level] &^= m
	}
	return true
}

// RestoreContent marks the subresources of aspect as defined again, as
// after a render pass that stores them.
func (s *Storage) RestoreContent(level VkLevel, layer, layerCount uint32, aspect gpucore.Aspect) {
	m := contentMask(layer, layerCount)
	if aspect&(gpucore.AspectColor|gpucore.AspectDepth) != 0 {
		s.content[level] |= m
	}
	if aspect&gpucore.AspectStencil != 0 {
		s.stencilContent[level] |= m
	}
}

// HasDefinedContent reports whether any of the layers has defined color or
// depth contents.
func (s *Storage) HasDefinedContent(level VkLevel, layer, layerCount uint32) bool {
	if layer+layerCount > maxContentDefinedLayers {
		return true
	}
	return s.content[level]&contentMask(layer, layerCount) != 0
}

// HasDefinedStencilContent is HasDefinedContent for the stencil aspect.
func (s *Storage) HasDefinedStencilContent(level VkLevel, layer, layerCount uint32) bool {
	if layer+layerCount > maxContentDefinedLayers {
		return true
	}
	return s.stencilContent[level]&contentMask(layer, layerCount) != 0
}
