package image

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/layout"
)

// ReadParams selects the texels ReadPixels returns.
type ReadParams struct {
	Level VkLevel
	Layer uint32
	Box   gpucore.Box
	// Format is the format of the result. None returns texels of the
	// actual format as stored, emulated components included.
	Format format.ID
	FlipY  bool
	// SkipLevels are left staged by the flush before the read.
	SkipLevels LevelMask
	// Reason is passed to Device.Finish.
	Reason string
}

// ReadPixels copies a box of one layer into host memory, tightly packed.
//
// Staged updates of the layer are flushed first, except those of
// p.SkipLevels. ReadPixels waits for the GPU, so it is only used where no
// GPU-side path exists.
func (s *Storage) ReadPixels(p ReadParams) ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidStorage
	}
	gl := s.ToGLLevel(p.Level)
	if err := s.FlushStagedUpdates(gl, gl+1, p.Layer, p.Layer+1, p.SkipLevels, nil); err != nil {
		return nil, err
	}

	ai := format.Get(s.fallback.Actual)
	e := p.Box.Extent
	w, h, d := int(e.Width), int(e.Height), int(max(e.Depth, 1))
	size := ai.DataSize(w, h, d)

	buf, err := s.dev.CreateBuffer(&gpucore.BufferDesc{
		Label: "readback",
		Size:  uint64(size),
		Usage: gpucore.BufferUsageTransferDst | gpucore.BufferUsageHostRead,
	})
	if err != nil {
		return nil, fmt.Errorf("image: readback buffer: %w", err)
	}
	defer s.dev.DestroyBuffer(buf)

	r := gpucore.SubresourceRange{
		Aspect:     s.Aspects(),
		BaseLevel:  uint32(p.Level),
		LevelCount: 1,
		BaseLayer:  p.Layer,
		LayerCount: 1,
	}
	var acc gpucore.Access
	acc.OnImageTransferRead(s.handle, r)
	acc.OnBufferTransferWrite(buf)
	cmd, err := s.dev.OutsideRenderPassCommandBuffer(&acc)
	if err != nil {
		return nil, err
	}
	s.RecordReadBarrier(cmd, r.Aspect, layout.TransferSrc, p.Level, 1, p.Layer, 1)
	cmd.CopyImageToBuffer(s.handle, gpucore.LayoutTransferSrcOptimal, buf, gpucore.BufferImageCopy{
		Aspect:     r.Aspect,
		Level:      uint32(p.Level),
		BaseLayer:  p.Layer,
		LayerCount: 1,
		Offset:     p.Box.Offset,
		Extent:     gpucore.Extent3D{Width: e.Width, Height: e.Height, Depth: uint32(d)},
	})

	reason := p.Reason
	if reason == "" {
		reason = "GPU stall due to ReadPixels"
	}
	if err := s.dev.Finish(reason); err != nil {
		return nil, err
	}

	raw := make([]byte, size)
	if err := s.dev.ReadBuffer(buf, 0, raw); err != nil {
		return nil, fmt.Errorf("image: read back %v: %w", s.fallback.Actual, err)
	}
	if p.Format == format.None || (p.Format == s.fallback.Actual && s.fallback.Load == format.Identity && !p.FlipY) {
		return raw, nil
	}
	return s.convertReadback(raw, w, h, d, p)
}

func (s *Storage) convertReadback(raw []byte, w, h, d int, p ReadParams) ([]byte, error) {
	ai, ci := format.Get(s.fallback.Actual), format.Get(p.Format)
	if ai.Compressed || ci.Compressed {
		return nil, fmt.Errorf("%w: read %v as %v", ErrConversionUnsupported, s.fallback.Actual, p.Format)
	}
	cv := format.Readback(s.fallback, p.Format)
	cv.FlipY = p.FlipY
	cv.Runner = s.runner

	srcPitch, srcSlice := ai.RowPitch(w), ai.DataSize(w, h, 1)
	dstPitch, dstSlice := ci.RowPitch(w), ci.DataSize(w, h, 1)
	out := make([]byte, dstSlice*d)
	for z := range d {
		cv.Rows(out[z*dstSlice:], dstPitch, raw[z*srcSlice:], srcPitch, w, h)
	}
	return out, nil
}
