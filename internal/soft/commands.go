package soft

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// commandBuffer executes commands on the device as they are recorded.
type commandBuffer struct {
	d *Device
}

var _ gpucore.CommandBuffer = (*commandBuffer)(nil)

func (c *commandBuffer) image(h gpucore.ImageHandle, layout gpucore.NativeLayout, op Op) (*image, bool) {
	img, ok := c.d.images[h]
	if !ok {
		c.d.fail(fmt.Errorf("%w: %v on image %d", gpucore.ErrInvalidHandle, op, h))
		return nil, false
	}
	if img.layout != layout {
		c.d.fail(fmt.Errorf("%w: %v on image %d in %v, recorded with %v", ErrLayoutMismatch, op, h, img.layout, layout))
	}
	return img, true
}

func (c *commandBuffer) buffer(h gpucore.BufferHandle, op Op) (*buffer, bool) {
	b, ok := c.d.buffers[h]
	if !ok {
		c.d.fail(fmt.Errorf("%w: %v on buffer %d", gpucore.ErrInvalidHandle, op, h))
		return nil, false
	}
	return b, true
}

// PipelineBarrier implements gpucore.CommandBuffer.
func (c *commandBuffer) PipelineBarrier(src, dst gpucore.PipelineStage, barriers ...gpucore.ImageBarrier) {
	for _, b := range barriers {
		img, ok := c.d.images[b.Image]
		if !ok {
			c.d.fail(fmt.Errorf("%w: barrier on image %d", gpucore.ErrInvalidHandle, b.Image))
			continue
		}
		if !img.layoutUnknown && b.OldLayout != gpucore.LayoutUndefined && b.OldLayout != img.layout {
			c.d.fail(fmt.Errorf("%w: barrier on image %d from %v, image is in %v", ErrLayoutMismatch, b.Image, b.OldLayout, img.layout))
		}
		if src == gpucore.StageNone || dst == gpucore.StageNone {
			c.d.fail(fmt.Errorf("soft: barrier on image %d with empty stage mask", b.Image))
		}
		img.layout = b.NewLayout
		img.layoutUnknown = false
		c.d.record(Command{Op: OpBarrier, Barrier: b, SrcStage: src, DstStage: dst})
	}
}

// forLayers calls fn for each sample of layers [baseLayer, baseLayer+layerCount).
func forLayers(img *image, baseLayer, layerCount uint32, fn func(layer, sample uint32)) {
	for l := baseLayer; l < baseLayer+layerCount; l++ {
		for s := range img.desc.Samples {
			fn(l, s)
		}
	}
}

// ClearColorImage implements gpucore.CommandBuffer.
func (c *commandBuffer) ClearColorImage(h gpucore.ImageHandle, layout gpucore.NativeLayout, col format.Color, r gpucore.SubresourceRange) {
	img, ok := c.image(h, layout, OpClearColor)
	if !ok {
		return
	}
	for level := r.BaseLevel; level < r.BaseLevel+r.LevelCount; level++ {
		e := img.extent(level)
		forLayers(img, r.BaseLayer, r.LayerCount, func(layer, sample uint32) {
			off := img.texelOffset(level, layer, sample, 0, 0, 0)
			info := img.info()
			format.Fill(img.levels[level][off:], info.RowPitch(int(e.Width)), img.desc.Format, col,
				int(e.Width), int(e.Height)*int(e.Depth))
		})
		c.d.record(Command{Op: OpClearColor, Image: h, Level: level, Layer: r.BaseLayer})
	}
}

// ClearDepthStencilImage implements gpucore.CommandBuffer.
func (c *commandBuffer) ClearDepthStencilImage(h gpucore.ImageHandle, layout gpucore.NativeLayout, depth float64, stencil uint32, r gpucore.SubresourceRange) {
	img, ok := c.image(h, layout, OpClearDepthStencil)
	if !ok {
		return
	}
	var mask uint8
	if r.Aspect&gpucore.AspectDepth != 0 {
		mask |= 1
	}
	if r.Aspect&gpucore.AspectStencil != 0 {
		mask |= 2
	}
	val := format.Color{depth, float64(stencil)}
	for level := r.BaseLevel; level < r.BaseLevel+r.LevelCount; level++ {
		e := img.extent(level)
		forLayers(img, r.BaseLayer, r.LayerCount, func(layer, sample uint32) {
			off := img.texelOffset(level, layer, sample, 0, 0, 0)
			format.FillMasked(img.levels[level][off:], img.info().RowPitch(int(e.Width)), img.desc.Format, val, mask,
				int(e.Width), int(e.Height)*int(e.Depth))
		})
		c.d.record(Command{Op: OpClearDepthStencil, Image: h, Level: level, Layer: r.BaseLayer})
	}
}

// copyRows copies a width x height x depth texel region between two
// tightly packed surfaces. Offsets are byte offsets of the first texel.
func copyRows(info *format.Info, dst []byte, dstOff, dstPitch, dstSlice int, src []byte, srcOff, srcPitch, srcSlice int, e gpucore.Extent3D) {
	rowBytes := info.RowPitch(int(e.Width))
	rows := (int(e.Height) + info.BlockH - 1) / info.BlockH
	for z := 0; z < int(max(e.Depth, 1)); z++ {
		for y := 0; y < rows; y++ {
			so := srcOff + z*srcSlice + y*srcPitch
			do := dstOff + z*dstSlice + y*dstPitch
			copy(dst[do:do+rowBytes], src[so:so+rowBytes])
		}
	}
}

func (c *commandBuffer) bufferRegion(img *image, b *buffer, r gpucore.BufferImageCopy, toImage bool, op Op) {
	info := img.info()
	rowLen, imgHeight := r.RowLength, r.ImageHeight
	if rowLen == 0 {
		rowLen = r.Extent.Width
	}
	if imgHeight == 0 {
		imgHeight = r.Extent.Height
	}
	bufPitch := info.RowPitch(int(rowLen))
	bufSlice := info.DataSize(int(rowLen), int(imgHeight), 1)
	depth := int(max(r.Extent.Depth, 1))

	e := img.extent(r.Level)
	if r.Offset.X < 0 || r.Offset.Y < 0 || r.Offset.Z < 0 ||
		uint32(r.Offset.X)+r.Extent.Width > e.Width || uint32(r.Offset.Y)+r.Extent.Height > e.Height ||
		uint32(r.Offset.Z)+uint32(depth) > e.Depth || r.BaseLayer+r.LayerCount > img.desc.Layers {
		c.d.fail(fmt.Errorf("%w: %v region outside level %d", ErrOutOfBounds, op, r.Level))
		return
	}
	need := int(r.BufferOffset) + bufSlice*(depth*int(r.LayerCount)-1) + info.DataSize(int(rowLen), int(r.Extent.Height), 1)
	if need > len(b.data) {
		c.d.fail(fmt.Errorf("%w: %v needs %d buffer bytes, buffer has %d", ErrOutOfBounds, op, need, len(b.data)))
		return
	}
	imgPitch := info.RowPitch(int(e.Width))
	imgSlice := info.DataSize(int(e.Width), int(e.Height), 1)
	for i := range r.LayerCount {
		bo := int(r.BufferOffset) + int(i)*depth*bufSlice
		io := img.texelOffset(r.Level, r.BaseLayer+i, 0, int(r.Offset.X), int(r.Offset.Y), int(r.Offset.Z))
		if toImage {
			copyRows(info, img.levels[r.Level], io, imgPitch, imgSlice, b.data, bo, bufPitch, bufSlice, r.Extent)
		} else {
			copyRows(info, b.data, bo, bufPitch, bufSlice, img.levels[r.Level], io, imgPitch, imgSlice, r.Extent)
		}
	}
}

// CopyBufferToImage implements gpucore.CommandBuffer.
func (c *commandBuffer) CopyBufferToImage(buf gpucore.BufferHandle, h gpucore.ImageHandle, layout gpucore.NativeLayout, regions ...gpucore.BufferImageCopy) {
	img, ok := c.image(h, layout, OpCopyBufferToImage)
	b, bok := c.buffer(buf, OpCopyBufferToImage)
	if !ok || !bok {
		return
	}
	for _, r := range regions {
		c.bufferRegion(img, b, r, true, OpCopyBufferToImage)
		c.d.record(Command{Op: OpCopyBufferToImage, Image: h, Level: r.Level, Layer: r.BaseLayer})
	}
}

// CopyImageToBuffer implements gpucore.CommandBuffer.
func (c *commandBuffer) CopyImageToBuffer(h gpucore.ImageHandle, layout gpucore.NativeLayout, buf gpucore.BufferHandle, regions ...gpucore.BufferImageCopy) {
	img, ok := c.image(h, layout, OpCopyImageToBuffer)
	b, bok := c.buffer(buf, OpCopyImageToBuffer)
	if !ok || !bok {
		return
	}
	if !b.gpuWritten {
		c.d.fail(fmt.Errorf("soft: copy into buffer %d not declared as a transfer write", buf))
	}
	for _, r := range regions {
		c.bufferRegion(img, b, r, false, OpCopyImageToBuffer)
		c.d.record(Command{Op: OpCopyImageToBuffer, Image: h, Level: r.Level, Layer: r.BaseLayer})
	}
}

// CopyImage implements gpucore.CommandBuffer.
func (c *commandBuffer) CopyImage(src gpucore.ImageHandle, srcLayout gpucore.NativeLayout, dst gpucore.ImageHandle, dstLayout gpucore.NativeLayout, regions ...gpucore.ImageCopy) {
	si, ok := c.image(src, srcLayout, OpCopyImage)
	di, dok := c.image(dst, dstLayout, OpCopyImage)
	if !ok || !dok {
		return
	}
	if si.info().PixelBytes != di.info().PixelBytes {
		c.d.fail(fmt.Errorf("soft: copy between %v and %v", si.desc.Format, di.desc.Format))
		return
	}
	for _, r := range regions {
		se, de := si.extent(r.SrcLevel), di.extent(r.DstLevel)
		sInfo, dInfo := si.info(), di.info()
		for i := range r.LayerCount {
			so := si.texelOffset(r.SrcLevel, r.SrcLayer+i, 0, int(r.SrcOffset.X), int(r.SrcOffset.Y), int(r.SrcOffset.Z))
			do := di.texelOffset(r.DstLevel, r.DstLayer+i, 0, int(r.DstOffset.X), int(r.DstOffset.Y), int(r.DstOffset.Z))
			copyRows(dInfo, di.levels[r.DstLevel], do, dInfo.RowPitch(int(de.Width)), dInfo.DataSize(int(de.Width), int(de.Height), 1),
				si.levels[r.SrcLevel], so, sInfo.RowPitch(int(se.Width)), sInfo.DataSize(int(se.Width), int(se.Height), 1), r.Extent)
		}
		c.d.record(Command{Op: OpCopyImage, Image: dst, Src: src, Level: r.DstLevel, Layer: r.DstLayer})
	}
}

// BlitImage implements gpucore.CommandBuffer.
func (c *commandBuffer) BlitImage(src gpucore.ImageHandle, srcLayout gpucore.NativeLayout, dst gpucore.ImageHandle, dstLayout gpucore.NativeLayout, filter gpucore.Filter, regions ...gpucore.ImageBlit) {
	si, ok := c.image(src, srcLayout, OpBlitImage)
	di, dok := c.image(dst, dstLayout, OpBlitImage)
	if !ok || !dok {
		return
	}
	for _, r := range regions {
		for i := range r.LayerCount {
			blit(si, r.SrcLevel, r.SrcLayer+i, r.SrcOffsets, di, r.DstLevel, r.DstLayer+i, r.DstOffsets, filter)
		}
		c.d.record(Command{Op: OpBlitImage, Image: dst, Src: src, Level: r.DstLevel, Layer: r.DstLayer})
	}
}

// ResolveImage implements gpucore.CommandBuffer. Samples are averaged.
func (c *commandBuffer) ResolveImage(src gpucore.ImageHandle, srcLayout gpucore.NativeLayout, dst gpucore.ImageHandle, dstLayout gpucore.NativeLayout, regions ...gpucore.ImageCopy) {
	si, ok := c.image(src, srcLayout, OpResolveImage)
	di, dok := c.image(dst, dstLayout, OpResolveImage)
	if !ok || !dok {
		return
	}
	if di.desc.Samples != 1 {
		c.d.fail(fmt.Errorf("soft: resolve into multisampled image %d", dst))
		return
	}
	sInfo, dInfo := si.info(), di.info()
	n := float64(si.desc.Samples)
	for _, r := range regions {
		for i := range r.LayerCount {
			for y := 0; y < int(r.Extent.Height); y++ {
				for x := 0; x < int(r.Extent.Width); x++ {
					var sum format.Color
					for s := range si.desc.Samples {
						off := si.texelOffset(r.SrcLevel, r.SrcLayer+i, s, int(r.SrcOffset.X)+x, int(r.SrcOffset.Y)+y, 0)
						t := sInfo.Decode(si.levels[r.SrcLevel][off:])
						for k := range sum {
							sum[k] += t[k]
						}
					}
					for k := range sum {
						sum[k] /= n
					}
					off := di.texelOffset(r.DstLevel, r.DstLayer+i, 0, int(r.DstOffset.X)+x, int(r.DstOffset.Y)+y, 0)
					dInfo.Encode(sum, di.levels[r.DstLevel][off:])
				}
			}
		}
		c.d.record(Command{Op: OpResolveImage, Image: dst, Src: src, Level: r.DstLevel, Layer: r.DstLayer})
	}
}
