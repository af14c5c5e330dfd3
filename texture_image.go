package glvk

import (
	"errors"
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
	"github.com/gogpu/glvk/internal/layout"
)

// checkIndex panics when idx cannot address a level of the texture.
func (t *Texture) checkIndex(idx Index) {
	if idx.Level >= image.MaxLevels {
		panic(fmt.Sprintf("glvk: level %d out of range", idx.Level))
	}
	if t.state.Type == TextureCube && idx.Layer >= 6 {
		panic(fmt.Sprintf("glvk: cube face %d out of range", idx.Layer))
	}
	if t.state.Type.IsMultisample() && idx.Level != 0 {
		panic("glvk: multisample textures have a single level")
	}
}

// normalizeSize gives 2D sizes a depth of one.
func (t *Texture) normalizeSize(size gpucore.Extent3D) gpucore.Extent3D {
	switch {
	case t.state.Type == Texture3D, t.state.Type.IsArray():
		size.Depth = max(size.Depth, 1)
	default:
		size.Depth = 1
	}
	return size
}

// fullBox returns the box covering size.
func fullBox(size gpucore.Extent3D) gpucore.Box {
	return gpucore.Box{Extent: size}
}

// SetImage defines level idx with size and format f and uploads src into
// it. A nil src defines the level without contents.
//
// For cube maps idx.Layer selects the face. For arrays size.Depth is the
// layer count.
func (t *Texture) SetImage(idx Index, size gpucore.Extent3D, f format.ID, unpack Unpack, src PixelSource) error {
	if err := t.begin(); err != nil {
		return err
	}
	if t.state.Immutable {
		return ErrImmutable
	}
	t.checkIndex(idx)
	size = t.normalizeSize(size)
	t.orphanImages()

	t.redefineLevel(idx, size, f)
	t.state.setDesc(t.face(idx), idx.Level, LevelDesc{Size: size, Format: f, Samples: 1})

	if size.Width == 0 || size.Height == 0 || isEmptySource(src) {
		return nil
	}
	fb := t.fallbackFor(f)
	box := fullBox(size)
	if t.state.Type == TextureCube {
		box.Extent.Depth = 1
	}
	return t.setSubImageImpl(idx, box, fb, f, unpack, src)
}

// SetCompressedImage is SetImage for a compressed format.
func (t *Texture) SetCompressedImage(idx Index, size gpucore.Extent3D, f format.ID, src PixelSource) error {
	if !format.Get(f).Compressed {
		return fmt.Errorf("glvk: %v is not a compressed format", f)
	}
	return t.SetImage(idx, size, f, Unpack{}, src)
}

func isEmptySource(src PixelSource) bool {
	switch s := src.(type) {
	case nil:
		return true
	case HostPixels:
		return len(s) == 0
	case BufferPixels:
		return s.Buffer == nil
	}
	return false
}

// allFacesRedefined reports whether level is redefined in every face.
func (t *Texture) allFacesRedefined(level image.GLLevel) bool {
	for f := range t.state.Type.faces() {
		if !t.redefined[f].Has(level) {
			return false
		}
	}
	return true
}

// redefineLevel drops the updates staged for the level and marks it
// redefined when the new definition does not fit the image.
func (t *Texture) redefineLevel(idx Index, size gpucore.Extent3D, id format.ID) {
	fb := t.fallbackFor(id)
	if t.image != nil {
		level := t.nativeLevel(idx.Level)
		if t.state.Type.IsArray() {
			t.image.RemoveStagedUpdates(level, level+1)
		} else {
			layer, count := t.layerRange(idx, 1)
			t.image.RemoveSingleSubresourceStagedUpdates(level, layer, count)
		}

		if t.image.Valid() && t.image.IsAllocated(level) {
			extent, layers := imageExtent(t.state.Type, size)
			compatible := extent == t.image.LevelExtent(t.image.ToVkLevel(level)) &&
				layers == t.image.LayerCount() &&
				fb.Intended == t.image.Intended() &&
				fb.Actual == t.image.Actual()
			if !compatible {
				face := t.face(idx)
				t.redefined[face] = t.redefined[face].With(level)
				if t.image.LevelCount() == 1 && t.allFacesRedefined(level) {
					t.releaseImage()
				}
			}
		}
	}
	t.ensureImageAllocated(fb)
}

// setSubImageImpl uploads src into box of level idx. box is in client
// coordinates; for arrays Z and Depth select layers.
func (t *Texture) setSubImageImpl(idx Index, box gpucore.Box, fb format.Fallback, dataFormat format.ID, unpack Unpack, src PixelSource) error {
	level := t.nativeLevel(idx.Level)
	layer, layerCount, nbox := t.nativeRegion(idx, box)
	if err := t.ghostOnOverwrite(idx, level, layer, layerCount, nbox, fb); err != nil {
		return err
	}
	how := t.decideApply(idx.Level, fb.Actual)
	need := unpack.sourceSize(dataFormat, nbox.Extent, layerCount)

	switch s := src.(type) {
	case BufferPixels:
		if s.Buffer.destroyed {
			return fmt.Errorf("%w: unpack buffer", ErrDestroyed)
		}
		if s.Offset+need > s.Buffer.size {
			return fmt.Errorf("glvk: unpack of %d bytes at %d overflows %d byte buffer", need, s.Offset, s.Buffer.size)
		}
		fast := t.isFastUnpackPossible(fb, dataFormat, unpack, s.Offset, nbox.Extent)
		switch {
		case fast && t.shouldUpdateBeFlushed(idx.Level, fb.Actual):
			// Written directly; nothing is left to apply.
			how = applyDefer
			if err := t.copyBufferToImage(s, unpack, level, layer, layerCount, nbox); err != nil {
				return err
			}
		case format.Get(dataFormat).Compressed && fb.IsEmulated():
			return fmt.Errorf("%w: emulated compressed upload from a buffer", ErrNotImplemented)
		default:
			t.ctx.perfWarning(&t.ctx.perf.BufferCPUUnpacks,
				"TexSubImage with unpack buffer copied on CPU due to store, format or offset restrictions",
				"label", t.label, "level", idx.Level)
			data, err := t.readBuffer(s.Buffer, s.Offset, need)
			if err != nil {
				return err
			}
			if err := t.image.StageHostUpdate(level, layer, layerCount, nbox, fb, hostSource(data, dataFormat, unpack)); err != nil {
				return err
			}
		}
	case HostPixels:
		if uint64(len(s)) < need {
			return fmt.Errorf("glvk: %d bytes of %v pixel data, want %d", len(s), dataFormat, need)
		}
		if err := t.image.StageHostUpdate(level, layer, layerCount, nbox, fb, hostSource(s, dataFormat, unpack)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("glvk: unknown pixel source %T", src)
	}

	if err := t.applyUpdate(level, layer, layerCount, how); err != nil {
		return err
	}
	return t.ensureImageInitializedIfUpdatesNeedStageOrFlush(idx.Level, how)
}

func hostSource(data []byte, id format.ID, unpack Unpack) image.HostSource {
	return image.HostSource{
		Data:        data,
		Format:      id,
		RowLength:   unpack.RowLength,
		ImageHeight: unpack.ImageHeight,
		FlipY:       unpack.FlipY,
	}
}

// readBuffer copies n bytes of b, waiting for the GPU if it still writes
// the buffer.
func (t *Texture) readBuffer(b *Buffer, offset, n uint64) ([]byte, error) {
	data := make([]byte, n)
	err := b.read(offset, data)
	if errors.Is(err, gpucore.ErrBufferInUse) {
		if err := t.ctx.stall("unpack buffer in use"); err != nil {
			return nil, err
		}
		err = b.read(offset, data)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// isFastUnpackPossible reports whether a buffer upload can be copied to
// the image without touching the data on the CPU.
func (t *Texture) isFastUnpackPossible(fb format.Fallback, dataFormat format.ID, unpack Unpack, offset uint64, e gpucore.Extent3D) bool {
	if t.image == nil || !t.image.Valid() {
		return false
	}
	info := format.Get(fb.Actual)
	if info.HasDepthAndStencil() {
		return false
	}
	if fb.Intended != fb.Actual || dataFormat != fb.Actual {
		return false
	}
	if offset%uint64(info.CopyBufferAlignment()) != 0 || unpack.FlipY {
		return false
	}
	if unpack.RowLength != 0 && unpack.RowLength < e.Width {
		return false
	}
	if unpack.ImageHeight != 0 && unpack.ImageHeight < e.Height {
		return false
	}
	return true
}

// copyBufferToImage writes a client buffer straight into the image,
// after whatever is staged for the same layers.
func (t *Texture) copyBufferToImage(src BufferPixels, unpack Unpack, level image.GLLevel, layer, count uint32, box gpucore.Box) error {
	if err := t.image.FlushStagedUpdates(level, level+1, layer, layer+count, t.redefinedMask(), nil); err != nil {
		return err
	}
	vk := t.image.ToVkLevel(level)
	aspect := t.image.Aspects()
	r := gpucore.SubresourceRange{Aspect: aspect, BaseLevel: uint32(vk), LevelCount: 1, BaseLayer: layer, LayerCount: count}

	var acc gpucore.Access
	acc.OnBufferTransferRead(src.Buffer.Handle())
	acc.OnImageTransferWrite(t.image.Handle(), r)
	cmd, err := t.ctx.dev.OutsideRenderPassCommandBuffer(&acc)
	if err != nil {
		return err
	}
	t.image.RecordWriteBarrier(cmd, aspect, layout.TransferDst, vk, 1, layer, count)
	cmd.CopyBufferToImage(src.Buffer.Handle(), t.image.Handle(), gpucore.LayoutTransferDstOptimal, gpucore.BufferImageCopy{
		BufferOffset: src.Offset,
		RowLength:    unpack.RowLength,
		ImageHeight:  unpack.ImageHeight,
		Aspect:       aspect,
		Level:        uint32(vk),
		BaseLayer:    layer,
		LayerCount:   count,
		Offset:       box.Offset,
		Extent:       box.Extent,
	})
	t.image.RestoreContent(vk, layer, count, aspect)
	return nil
}

// ghostOnOverwrite replaces an image the GPU still reads with a new one
// when an upload covers all of it, instead of waiting.
func (t *Texture) ghostOnOverwrite(idx Index, level image.GLLevel, layer, count uint32, box gpucore.Box, fb format.Fallback) error {
	img := t.image
	if img == nil || !t.owns || !img.Valid() || img.IsExternal() {
		return nil
	}
	if t.state.Exported || t.state.ExternalMemory || t.ctx.features.ZeroInitializeAllocations {
		return nil
	}
	if img.Type() != gpucore.ImageType2D || img.LevelCount() != 1 || img.LayerCount() != 1 {
		return nil
	}
	if level != img.FirstAllocatedLevel() || layer != 0 || count != 1 {
		return nil
	}
	if box != img.LevelBox(0) || img.Aspects() != gpucore.AspectColor || img.Actual() != fb.Actual {
		return nil
	}
	if !img.InUse() {
		return nil
	}
	t.ctx.perf.Ghosts++
	t.ctx.log.Info("texture image ghosted on overwrite", "label", t.label, "level", idx.Level)

	t.releaseImage()
	t.ensureImageAllocated(fb)
	return t.initImage(fb, enabledLevels)
}

// SetSubImage uploads src into box of the defined level idx. dataFormat
// describes src; None means the format of the level.
func (t *Texture) SetSubImage(idx Index, box gpucore.Box, dataFormat format.ID, unpack Unpack, src PixelSource) error {
	if err := t.begin(); err != nil {
		return err
	}
	t.checkIndex(idx)
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() {
		return fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	if err := checkBox(box, d.Size); err != nil {
		return err
	}
	if dataFormat == format.None {
		dataFormat = d.Format
	}
	if box.Extent.Width == 0 || box.Extent.Height == 0 || isEmptySource(src) {
		return nil
	}
	fb := t.fallbackFor(d.Format)
	if t.image == nil {
		t.ensureImageAllocated(fb)
	}
	if fb.Actual != t.image.Actual() && t.image.Valid() && !t.owns {
		// Borrowed images cannot be converted; upload in their format.
		fb = t.image.Fallback()
	}
	return t.setSubImageImpl(idx, box, fb, dataFormat, unpack, src)
}

// SetCompressedSubImage is SetSubImage for compressed data in the format
// of the level.
func (t *Texture) SetCompressedSubImage(idx Index, box gpucore.Box, src PixelSource) error {
	d := t.Desc(t.face(idx), idx.Level)
	if d.Defined() && !format.Get(d.Format).Compressed {
		return fmt.Errorf("glvk: level %d is not compressed", idx.Level)
	}
	return t.SetSubImage(idx, box, format.None, Unpack{}, src)
}

// checkBox returns an error when box does not fit in size.
func checkBox(box gpucore.Box, size gpucore.Extent3D) error {
	o, e := box.Offset, box.Extent
	if o.X < 0 || o.Y < 0 || o.Z < 0 ||
		uint32(o.X)+e.Width > size.Width ||
		uint32(o.Y)+e.Height > size.Height ||
		uint32(o.Z)+max(e.Depth, 1) > max(size.Depth, 1) {
		return fmt.Errorf("glvk: box %+v outside level of size %+v", box, size)
	}
	return nil
}

// ClearImage fills the layers idx addresses with c.
func (t *Texture) ClearImage(idx Index, c format.Color) error {
	if err := t.begin(); err != nil {
		return err
	}
	t.checkIndex(idx)
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() {
		return fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	fb := t.fallbackFor(d.Format)
	if t.image == nil {
		t.ensureImageAllocated(fb)
	}
	_, arrayLayers := imageExtent(t.state.Type, d.Size)
	layer, count := t.layerRange(idx, arrayLayers)
	level := t.nativeLevel(idx.Level)
	t.image.StageClear(level, layer, count, gpucore.AspectsOf(fb.Actual), image.ClearValueFor(fb, c))
	return t.ensureImageInitializedIfUpdatesNeedStageOrFlush(idx.Level, applyDefer)
}

// ClearSubImage fills box of level idx with c.
func (t *Texture) ClearSubImage(idx Index, box gpucore.Box, c format.Color) error {
	if err := t.begin(); err != nil {
		return err
	}
	t.checkIndex(idx)
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() {
		return fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	if err := checkBox(box, d.Size); err != nil {
		return err
	}
	fb := t.fallbackFor(d.Format)
	if t.image == nil {
		t.ensureImageAllocated(fb)
	}
	layer, count, nbox := t.nativeRegion(idx, box)
	level := t.nativeLevel(idx.Level)
	t.image.StagePartialClear(level, layer, count, nbox, gpucore.AspectsOf(fb.Actual), image.ClearValueFor(fb, c))
	return t.ensureImageInitializedIfUpdatesNeedStageOrFlush(idx.Level, applyDefer)
}
