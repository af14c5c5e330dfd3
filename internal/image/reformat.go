package image

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// ReformatStagedBufferUpdates rewrites the updates staged on a storage
// without an image from from.Actual into to.Actual, for when the image
// is about to be allocated in another format. Buffer sources are read
// back, converted and restaged. Clears are remapped and clears of
// emulated components are dropped, the new image stages its own.
func (s *Storage) ReformatStagedBufferUpdates(from, to format.Fallback) error {
	if s.Valid() {
		return fmt.Errorf("%w: reformat with an allocated image", ErrInvalidStorage)
	}
	if from.Actual == to.Actual {
		return nil
	}
	for l := range GLLevel(MaxLevels) {
		s.removeUpdatesIf(l, func(u *Update) bool {
			return u.Kind == UpdateClearEmulatedChannelsOnly
		})
		q := s.updates[l]
		for i := range q {
			u := &q[i]
			switch u.Kind {
			case UpdateClear, UpdateClearPartial:
				mask := u.Clear.Mask
				c := u.Clear.Color
				if format.Get(from.Actual).HasDepthOrStencil() {
					c = format.Color{u.Clear.Depth, float64(u.Clear.Stencil)}
				}
				u.Clear = ClearValueFor(to, from.LoadColor(c))
				u.Clear.Mask = mask
				u.Aspect = gpucore.AspectsOf(to.Actual)
			case UpdateBuffer:
				if u.Buffer.Format != from.Actual {
					continue
				}
				if err := s.reformatBufferUpdate(u, from, to); err != nil {
					return err
				}
			}
		}
	}
	s.fallback = to
	return nil
}

// reformatBufferUpdate replaces the source of u with a staging buffer in
// to.Actual.
func (s *Storage) reformatBufferUpdate(u *Update, from, to format.Fallback) error {
	si, di := format.Get(from.Actual), format.Get(to.Actual)
	if si.Compressed || di.Compressed {
		return fmt.Errorf("%w: staged %v data to %v", ErrConversionUnsupported, from.Actual, to.Actual)
	}
	src := u.Buffer
	e := u.Box.Extent
	w, h := int(e.Width), int(e.Height)
	slices := int(max(e.Depth, 1) * max(u.LayerCount, 1))
	rowLen, imgHeight := w, h
	if src.RowLength != 0 {
		rowLen = int(src.RowLength)
	}
	if src.ImageHeight != 0 {
		imgHeight = int(src.ImageHeight)
	}
	srcPitch := si.RowPitch(rowLen)
	srcSlicePitch := si.DataSize(rowLen, imgHeight, 1)
	need := srcSlicePitch*(slices-1) + si.DataSize(rowLen, h, 1)

	in := scratch.Get(need)
	defer scratch.Put(in)
	if err := s.dev.ReadBuffer(src.Buffer.Get(), src.Offset, in); err != nil {
		return fmt.Errorf("image: reading staged buffer: %w", err)
	}

	cv := format.Converter{Src: from.Actual, SrcLoad: from.Load, Dst: to.Actual, DstStore: to.Store, Runner: s.runner}
	dstPitch := di.RowPitch(w)
	dstSlicePitch := di.DataSize(w, h, 1)
	out := scratch.Get(dstSlicePitch * slices)
	defer scratch.Put(out)
	for i := range slices {
		cv.Rows(out[i*dstSlicePitch:], dstPitch, in[i*srcSlicePitch:], srcPitch, w, h)
	}

	buf, err := s.dev.CreateBuffer(&gpucore.BufferDesc{
		Label: "staging",
		Size:  uint64(len(out)),
		Usage: gpucore.BufferUsageTransferSrc | gpucore.BufferUsageHostWrite,
	})
	if err != nil {
		return fmt.Errorf("image: staging buffer: %w", err)
	}
	if err := s.dev.WriteBuffer(buf, 0, out); err != nil {
		s.dev.DestroyBuffer(buf)
		return fmt.Errorf("image: staging buffer: %w", err)
	}

	s.stagedBufferBytes[u.Level] -= u.stagedBytes()
	u.release()
	u.Aspect = gpucore.AspectsOf(to.Actual)
	u.Buffer = &BufferSource{
		Buffer: NewRefCounted(buf, s.dev.DestroyBuffer),
		Format: to.Actual,
		Size:   uint64(len(out)),
	}
	u.retain()
	s.stagedBufferBytes[u.Level] += u.stagedBytes()
	s.log.Debug("staged buffer update reformatted", "level", u.Level, "from", from.Actual, "to", to.Actual)
	return nil
}
