package image

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// HostSource is client texel data in host memory.
type HostSource struct {
	Data   []byte
	Format format.ID
	// RowLength and ImageHeight are the source strides in texels. Zero
	// means tightly packed rows and images.
	RowLength   uint32
	ImageHeight uint32
	// FlipY stores the rows bottom to top.
	FlipY bool
}

// robustClearDepth is the depth robust resource init clears to.
const robustClearDepth = 1.0

// StageHostUpdate converts src into fb's actual format, copies it into a
// new staging buffer and stages a copy of the buffer into box of layers
// [layer, layer+layerCount) of level.
//
// For 3D images layer is 0 and box selects depth slices. For arrays box
// has depth 1 and src holds layerCount images.
func (s *Storage) StageHostUpdate(level GLLevel, layer, layerCount uint32, box gpucore.Box, fb format.Fallback, src HostSource) error {
	data, err := s.convertHostData(box.Extent, layerCount, fb, src)
	if err != nil {
		return err
	}
	return s.stageStagingBuffer(level, layer, layerCount, box, fb.Actual, data)
}

// convertHostData packs src tightly in fb.Actual. The result comes from
// the scratch pool.
func (s *Storage) convertHostData(e gpucore.Extent3D, layerCount uint32, fb format.Fallback, src HostSource) ([]byte, error) {
	si, di := format.Get(src.Format), format.Get(fb.Actual)
	w, h := int(e.Width), int(e.Height)
	slices := int(max(e.Depth, 1) * max(layerCount, 1))

	rowLen, imgHeight := w, h
	if src.RowLength != 0 {
		rowLen = int(src.RowLength)
	}
	if src.ImageHeight != 0 {
		imgHeight = int(src.ImageHeight)
	}
	srcPitch := si.RowPitch(rowLen)
	srcSlicePitch := si.DataSize(rowLen, imgHeight, 1)
	dstPitch := di.RowPitch(w)
	dstSlicePitch := di.DataSize(w, h, 1)

	if need := srcSlicePitch*(slices-1) + si.DataSize(rowLen, h, 1); len(src.Data) < need {
		panic(fmt.Sprintf("image: %d bytes of %v data for a %dx%dx%d region, want %d", len(src.Data), src.Format, w, h, slices, need))
	}

	out := scratch.Get(dstSlicePitch * slices)
	for i := range slices {
		sp := src.Data[i*srcSlicePitch:]
		dp := out[i*dstSlicePitch:]
		switch {
		case si.Compressed && src.Format == fb.Actual:
			copy(dp[:dstSlicePitch], sp[:dstSlicePitch])
		case si.Compressed && fb.Decompress != nil && !di.Compressed:
			fb.Decompress(dp, dstPitch, sp, w, h)
		case si.Compressed || di.Compressed:
			scratch.Put(out)
			return nil, fmt.Errorf("%w: %v to %v", ErrConversionUnsupported, src.Format, fb.Actual)
		default:
			cv := format.Upload(src.Format, fb)
			cv.FlipY = src.FlipY
			cv.Runner = s.runner
			cv.Rows(dp, dstPitch, sp, srcPitch, w, h)
		}
	}
	return out, nil
}

// stageStagingBuffer uploads data into a new buffer and stages a copy of
// it. data is returned to the scratch pool.
func (s *Storage) stageStagingBuffer(level GLLevel, layer, layerCount uint32, box gpucore.Box, actual format.ID, data []byte) error {
	defer scratch.Put(data)

	buf, err := s.dev.CreateBuffer(&gpucore.BufferDesc{
		Label: "staging",
		Size:  uint64(len(data)),
		Usage: gpucore.BufferUsageTransferSrc | gpucore.BufferUsageHostWrite,
	})
	if err != nil {
		return fmt.Errorf("image: staging buffer: %w", err)
	}
	if err := s.dev.WriteBuffer(buf, 0, data); err != nil {
		s.dev.DestroyBuffer(buf)
		return fmt.Errorf("image: staging buffer: %w", err)
	}
	s.StageBufferUpdate(level, layer, layerCount, box, gpucore.AspectsOf(actual), BufferSource{
		Buffer: NewRefCounted(buf, s.dev.DestroyBuffer),
		Format: actual,
		Size:   uint64(len(data)),
	})
	return nil
}

// StageBufferUpdate stages a copy from a buffer. The buffer must hold
// texels of the actual format at the given offset and strides, and must
// not change until the update is flushed.
func (s *Storage) StageBufferUpdate(level GLLevel, layer, layerCount uint32, box gpucore.Box, aspect gpucore.Aspect, src BufferSource) {
	s.appendSubresourceUpdate(Update{
		Kind:       UpdateBuffer,
		Aspect:     aspect,
		Level:      level,
		Layer:      layer,
		LayerCount: max(layerCount, 1),
		Box:        box,
		Buffer:     &src,
	})
}

// StageImageUpdate stages a copy from another image into box of level.
func (s *Storage) StageImageUpdate(level GLLevel, layer, layerCount uint32, box gpucore.Box, src ImageSource) {
	s.appendSubresourceUpdate(Update{
		Kind:       UpdateImage,
		Aspect:     gpucore.AspectsOf(src.Format),
		Level:      level,
		Layer:      layer,
		LayerCount: max(layerCount, 1),
		Box:        box,
		Image:      &src,
	})
}

// StageClear stages a clear of whole layers of level. v is in the actual
// format's component space.
func (s *Storage) StageClear(level GLLevel, layer, layerCount uint32, aspect gpucore.Aspect, v ClearValue) {
	s.appendSubresourceUpdate(Update{
		Kind:       UpdateClear,
		Aspect:     aspect,
		Level:      level,
		Layer:      layer,
		LayerCount: max(layerCount, 1),
		Clear:      v,
	})
}

// StagePartialClear stages a clear of box in layers of level.
func (s *Storage) StagePartialClear(level GLLevel, layer, layerCount uint32, box gpucore.Box, aspect gpucore.Aspect, v ClearValue) {
	s.appendSubresourceUpdate(Update{
		Kind:       UpdateClearPartial,
		Aspect:     aspect,
		Level:      level,
		Layer:      layer,
		LayerCount: max(layerCount, 1),
		Box:        box,
		Clear:      v,
	})
}

// ClearValueFor maps a logical color onto fb's actual format. Emulated
// components get their defaults.
func ClearValueFor(fb format.Fallback, c format.Color) ClearValue {
	if format.Get(fb.Actual).HasDepthOrStencil() {
		d := fb.StoreColor(c)
		return ClearValue{Depth: d[0], Stencil: uint32(d[1])}
	}
	return ClearValue{Color: fb.StoreColor(c)}
}

// StageRobustResourceClear stages a clear of the layers of level to
// zero, with emulated components at their defaults and depth at 1.
func (s *Storage) StageRobustResourceClear(level GLLevel, layer, layerCount uint32, fb format.Fallback) {
	v := ClearValueFor(fb, format.Color{})
	if format.Get(fb.Actual).DepthBits > 0 {
		v.Depth = robustClearDepth
	}
	s.StageClear(level, layer, layerCount, gpucore.AspectsOf(fb.Actual), v)
}

// stageClearIfEmulatedFormat stages, at the front of every allocated
// level, a clear of the components the intended format lacks.
func (s *Storage) stageClearIfEmulatedFormat() {
	mask := s.fallback.EmulatedMask()
	if mask == 0 {
		return
	}
	def := s.fallback.EmulatedDefault()
	for l := range VkLevel(s.levels) {
		s.prependSubresourceUpdate(Update{
			Kind:       UpdateClearEmulatedChannelsOnly,
			Aspect:     s.Aspects(),
			Level:      s.ToGLLevel(l),
			LayerCount: s.layers,
			Box:        s.LevelBox(l),
			Clear:      ClearValue{Color: def, Stencil: uint32(def[1]), Mask: mask},
		})
	}
}

// StageSelfAsSubresourceUpdates hands the image to a new storage that
// becomes the source of one image update per allocated level not in
// skipLevels. The storage is left without an image; the old image is
// destroyed once every such update has been flushed or dropped.
func (s *Storage) StageSelfAsSubresourceUpdates(skipLevels LevelMask) {
	if !s.Valid() {
		return
	}
	prev := &Storage{}
	*prev = *s
	prev.updates = [MaxLevels][]Update{}
	prev.stagedBufferBytes = [MaxLevels]uint64{}

	ref := NewRefCounted(prev, func(p *Storage) { p.Release() })
	for l := range VkLevel(s.levels) {
		gl := s.ToGLLevel(l)
		if skipLevels.Has(gl) {
			continue
		}
		s.prependSubresourceUpdate(Update{
			Kind:       UpdateImage,
			Aspect:     s.Aspects(),
			Level:      gl,
			LayerCount: s.layers,
			Box:        s.LevelBox(l),
			Image: &ImageSource{
				Image:  ref,
				Level:  l,
				Format: s.fallback.Actual,
			},
		})
	}
	s.log.Debug("image staged as updates", "handle", s.handle, "levels", s.levels, "skip", skipLevels)

	s.forget()
	if ref.Refs() == 0 {
		prev.Release()
	}
}
