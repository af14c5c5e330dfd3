package glvk

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
	"github.com/gogpu/glvk/internal/layout"
	"github.com/gogpu/glvk/internal/view"
)

// CopyTextureOptions are the conversions CopyTexture applies.
type CopyTextureOptions struct {
	FlipY            bool
	PremultiplyAlpha bool
	UnmultiplyAlpha  bool
}

func (o CopyTextureOptions) converts() bool {
	return o.FlipY || o.PremultiplyAlpha != o.UnmultiplyAlpha
}

// copySource is a region of one level of an image. For arrays layer and
// layerCount select layers and box has depth one.
type copySource struct {
	image      *image.Storage
	level      image.GLLevel
	layer      uint32
	layerCount uint32
	box        gpucore.Box
	// views follows image, or is nil for images without a view cache.
	views *view.Cache
}

// drawCopy is a shader copy from src into the texture image.
type drawCopy struct {
	dstLevel   image.GLLevel
	dstLayer   uint32
	layerCount uint32
	dstOffset  gpucore.Offset3D
	dstFb      format.Fallback

	src      *image.Storage
	srcViews *view.Cache
	srcLevel image.GLLevel
	srcLayer uint32
	srcBox   gpucore.Box

	flipY       bool
	premultiply bool
	unmultiply  bool
}

func canCopyWithTransferForTexImage(f gpucore.Features, flipY bool, src, dst format.Fallback) bool {
	return !flipY && src.Intended == dst.Intended && src.Actual == dst.Actual &&
		f.HasFormatFeatures(src.Actual, format.FeatureTransferSrc) &&
		f.HasFormatFeatures(dst.Actual, format.FeatureTransferDst)
}

func canCopyWithTransferForCopyTexture(f gpucore.Features, opts CopyTextureOptions, src, dst format.Fallback) bool {
	return !opts.FlipY && !opts.PremultiplyAlpha && !opts.UnmultiplyAlpha &&
		format.TransferCompatible(src.Intended, src.Actual, dst.Intended, dst.Actual) &&
		format.Get(src.Actual).PixelBytes == format.Get(dst.Actual).PixelBytes &&
		f.HasFormatFeatures(src.Actual, format.FeatureTransferSrc) &&
		f.HasFormatFeatures(dst.Actual, format.FeatureTransferDst)
}

func canCopyWithDraw(f gpucore.Features, srcActual, dstActual format.ID) bool {
	si, di := format.Get(srcActual), format.Get(dstActual)
	return f.SupportsDrawUtils &&
		si.IsColor() && di.IsColor() && !si.Compressed && !di.Compressed &&
		f.HasFormatFeatures(srcActual, format.FeatureSampled) &&
		f.HasFormatFeatures(dstActual, format.FeatureColorAttachment)
}

// clipArea clips area to extent e and returns how far the origin moved
// in the destination.
func clipArea(area gpucore.Box, e gpucore.Extent3D, flipY bool) (gpucore.Box, int32, int32, bool) {
	x0, y0 := max(area.Offset.X, 0), max(area.Offset.Y, 0)
	x1 := min(area.Offset.X+int32(area.Extent.Width), int32(e.Width))
	y1 := min(area.Offset.Y+int32(area.Extent.Height), int32(e.Height))
	if x1 <= x0 || y1 <= y0 {
		return gpucore.Box{}, 0, 0, false
	}
	dx, dy := x0-area.Offset.X, y0-area.Offset.Y
	if flipY {
		dy = area.Offset.Y + int32(area.Extent.Height) - y1
	}
	out := area
	out.Offset.X, out.Offset.Y = x0, y0
	out.Extent.Width, out.Extent.Height = uint32(x1-x0), uint32(y1-y0)
	return out, dx, dy, true
}

// snapshotIfSelf copies src into a temporary image when it is part of
// the texture image, which a copy cannot read and write at once. The
// returned function destroys the temporary image.
func (t *Texture) snapshotIfSelf(src copySource) (copySource, func(), error) {
	if src.image != t.image {
		return src, func() {}, nil
	}
	fb := src.image.Fallback()
	f := t.ctx.features
	if !f.HasFormatFeatures(fb.Actual, format.FeatureTransferSrc|format.FeatureTransferDst) {
		return src, nil, fmt.Errorf("%w: copy within %q without transfer support", ErrNotImplemented, t.label)
	}
	if err := src.image.FlushStagedUpdates(src.level, src.level+1, src.layer, src.layer+src.layerCount, t.redefinedMask(), nil); err != nil {
		return src, nil, err
	}
	typ := gpucore.ImageType2D
	if src.box.Extent.Depth > 1 {
		typ = gpucore.ImageType3D
	}
	usage := gpucore.UsageSampled
	staging, err := t.newStagingImage(fb, typ, src.box.Extent, 1, src.layerCount, usage)
	if err != nil {
		return src, nil, err
	}
	if err := recordImageCopy(t.ctx.dev, src, staging, 0, 0, gpucore.Offset3D{}); err != nil {
		staging.Destroy()
		return src, nil, err
	}
	t.ctx.log.Debug("copy source snapshotted", "label", t.label, "level", src.level)
	snap := copySource{
		image:      staging,
		layerCount: src.layerCount,
		box:        gpucore.Box{Extent: src.box.Extent},
	}
	return snap, staging.Destroy, nil
}

// recordImageCopy records a transfer copy of src into dst at level
// dstVk, layer dstLayer and offset, with the barriers it needs.
func recordImageCopy(dev gpucore.Device, src copySource, dst *image.Storage, dstVk image.VkLevel, dstLayer uint32, offset gpucore.Offset3D) error {
	aspect := src.image.Aspects()
	srcVk := src.image.ToVkLevel(src.level)
	count := max(src.layerCount, 1)

	var acc gpucore.Access
	acc.OnImageTransferRead(src.image.Handle(), gpucore.SubresourceRange{
		Aspect: aspect, BaseLevel: uint32(srcVk), LevelCount: 1, BaseLayer: src.layer, LayerCount: count,
	})
	acc.OnImageTransferWrite(dst.Handle(), gpucore.SubresourceRange{
		Aspect: aspect, BaseLevel: uint32(dstVk), LevelCount: 1, BaseLayer: dstLayer, LayerCount: count,
	})
	cmd, err := dev.OutsideRenderPassCommandBuffer(&acc)
	if err != nil {
		return err
	}
	src.image.RecordReadBarrier(cmd, aspect, layout.TransferSrc, srcVk, 1, src.layer, count)
	dst.RecordWriteBarrier(cmd, aspect, layout.TransferDst, dstVk, 1, dstLayer, count)
	cmd.CopyImage(src.image.Handle(), gpucore.LayoutTransferSrcOptimal, dst.Handle(), gpucore.LayoutTransferDstOptimal, gpucore.ImageCopy{
		Aspect:     aspect,
		SrcLevel:   uint32(srcVk),
		SrcLayer:   src.layer,
		DstLevel:   uint32(dstVk),
		DstLayer:   dstLayer,
		LayerCount: count,
		SrcOffset:  src.box.Offset,
		DstOffset:  offset,
		Extent:     src.box.Extent,
	})
	dst.RestoreContent(dstVk, dstLayer, count, aspect)
	return nil
}

// copyWithTransfer copies src into box of the texture level, directly
// when the image can take it and through a staged temporary image
// otherwise.
func (t *Texture) copyWithTransfer(idx Index, dstLayer uint32, dst gpucore.Box, dstFb format.Fallback, src copySource) error {
	level := t.nativeLevel(idx.Level)
	count := max(src.layerCount, 1)
	if t.shouldUpdateBeFlushed(idx.Level, dstFb.Actual) {
		if err := t.image.FlushStagedUpdates(level, level+1, dstLayer, dstLayer+count, t.redefinedMask(), nil); err != nil {
			return err
		}
		return recordImageCopy(t.ctx.dev, src, t.image, t.image.ToVkLevel(level), dstLayer, dst.Offset)
	}

	typ := gpucore.ImageType2D
	if src.box.Extent.Depth > 1 {
		typ = gpucore.ImageType3D
	}
	staging, err := t.newStagingImage(dstFb, typ, src.box.Extent, 1, count, 0)
	if err != nil {
		return err
	}
	if err := recordImageCopy(t.ctx.dev, src, staging, 0, 0, gpucore.Offset3D{}); err != nil {
		staging.Destroy()
		return err
	}
	ref := image.NewRefCounted(staging, (*image.Storage).Destroy)
	t.image.StageImageUpdate(level, dstLayer, count, dst, image.ImageSource{Image: ref, Format: staging.Actual()})
	return t.ensureImageInitializedIfUpdatesNeedStageOrFlush(idx.Level, applyDefer)
}

// copySubImageWithDraw copies with a shader, into the image directly when
// it can take the update and through a staged temporary image otherwise.
func (t *Texture) copySubImageWithDraw(p drawCopy) error {
	client := uint32(p.dstLevel - t.levelOffset)
	direct := t.shouldUpdateBeFlushed(client, p.dstFb.Actual) && p.src != t.image
	dst := t.image
	dstLevel, dstLayer, dstOffset := p.dstLevel, p.dstLayer, p.dstOffset
	count := max(p.layerCount, 1)
	extent := p.srcBox.Extent

	dstView := gpucore.ViewHandle(gpucore.InvalidHandle)
	if direct {
		if err := dst.FlushStagedUpdates(dstLevel, dstLevel+1, dstLayer, dstLayer+count, t.redefinedMask(), nil); err != nil {
			return err
		}
		if count == 1 && dst.Usage()&gpucore.UsageColorAttachment != 0 {
			v, err := t.views.CopyDst(dst, dstLevel, dstLayer)
			if err != nil {
				return err
			}
			dstView = v
		}
	} else {
		typ := gpucore.ImageType2D
		if extent.Depth > 1 {
			typ = gpucore.ImageType3D
		}
		var err error
		dst, err = t.newStagingImage(p.dstFb, typ, extent, 1, count, gpucore.UsageColorAttachment|gpucore.UsageSampled)
		if err != nil {
			return err
		}
		dstLevel, dstLayer, dstOffset = 0, 0, gpucore.Offset3D{}
	}

	if err := t.recordDrawCopy(p, dst, dstView, dstLevel, dstLayer, dstOffset, count); err != nil {
		if !direct {
			dst.Destroy()
		}
		return err
	}
	if direct {
		return nil
	}
	ref := image.NewRefCounted(dst, (*image.Storage).Destroy)
	box := gpucore.Box{Offset: p.dstOffset, Extent: extent}
	t.image.StageImageUpdate(p.dstLevel, p.dstLayer, count, box, image.ImageSource{Image: ref, Format: dst.Actual()})
	return t.ensureImageInitializedIfUpdatesNeedStageOrFlush(client, applyDefer)
}

// recordDrawCopy records the draw copy of count layers. dstView, when
// valid, is the view of the single destination layer.
func (t *Texture) recordDrawCopy(p drawCopy, dst *image.Storage, dstView gpucore.ViewHandle, dstLevel image.GLLevel, dstLayer uint32, dstOffset gpucore.Offset3D, count uint32) error {
	srcVk := p.src.ToVkLevel(p.srcLevel)
	dstVk := dst.ToVkLevel(dstLevel)
	srcRange := gpucore.SubresourceRange{Aspect: gpucore.AspectColor, BaseLevel: uint32(srcVk), LevelCount: 1, BaseLayer: p.srcLayer, LayerCount: count}
	dstRange := gpucore.SubresourceRange{Aspect: gpucore.AspectColor, BaseLevel: uint32(dstVk), LevelCount: 1, BaseLayer: dstLayer, LayerCount: count}

	var acc gpucore.Access
	acc.OnImageShaderRead(p.src.Handle(), srcRange)
	acc.OnImageDrawWrite(dst.Handle(), dstRange)
	cmd, err := t.ctx.dev.OutsideRenderPassCommandBuffer(&acc)
	if err != nil {
		return err
	}
	p.src.RecordReadBarrier(cmd, gpucore.AspectColor, layout.FragmentShaderReadOnly, srcVk, 1, p.srcLayer, count)
	dst.RecordWriteBarrier(cmd, gpucore.AspectColor, layout.ColorWrite, dstVk, 1, dstLayer, count)

	srcView := gpucore.ViewHandle(gpucore.InvalidHandle)
	if p.srcViews != nil && count == 1 {
		if srcView, err = p.srcViews.CopySrc(p.src, p.srcLevel); err != nil {
			return err
		}
	}
	srcFb := p.src.Fallback()
	for i := range count {
		err := t.ctx.dev.Utils().CopyImageWithDraw(cmd, gpucore.DrawCopyParams{
			Src:              p.src.Handle(),
			SrcFormat:        srcFb.Actual,
			SrcLoad:          srcFb.Load,
			SrcLevel:         uint32(srcVk),
			SrcLayer:         p.srcLayer + i,
			SrcOffset:        p.srcBox.Offset,
			Dst:              dst.Handle(),
			DstFormat:        p.dstFb.Actual,
			DstStore:         p.dstFb.Store,
			DstLevel:         uint32(dstVk),
			DstLayer:         dstLayer + i,
			DstOffset:        dstOffset,
			Extent:           p.srcBox.Extent,
			FlipY:            p.flipY,
			PremultiplyAlpha: p.premultiply,
			UnmultiplyAlpha:  p.unmultiply,
			SrcView:          srcView,
			DstView:          dstView,
		})
		if err != nil {
			return err
		}
	}
	dst.RestoreContent(dstVk, dstLayer, count, gpucore.AspectColor)
	return nil
}

// copySubImageImpl copies a framebuffer region into the texture level.
// dstOffset is in client coordinates.
func (t *Texture) copySubImageImpl(idx Index, dstOffset gpucore.Offset3D, dstFb format.Fallback, src copySource, flipY bool) error {
	e := src.image.LevelExtent(src.image.ToVkLevel(src.level))
	area, dx, dy, ok := clipArea(src.box, e, flipY)
	if !ok {
		return nil
	}
	src.box = area
	dstOffset.X += dx
	dstOffset.Y += dy

	dstLayer, _, dbox := t.nativeRegion(idx, gpucore.Box{Offset: dstOffset, Extent: gpucore.Extent3D{Width: area.Extent.Width, Height: area.Extent.Height, Depth: 1}})
	if t.state.Type == Texture3D {
		dbox.Offset.Z = dstOffset.Z
	}
	level := t.nativeLevel(idx.Level)
	f := t.ctx.features

	switch {
	case canCopyWithTransferForTexImage(f, flipY, src.image.Fallback(), dstFb):
		return t.copyWithTransfer(idx, dstLayer, dbox, dstFb, src)
	case canCopyWithDraw(f, src.image.Actual(), dstFb.Actual):
		if err := t.ctx.dev.FlushCommandsAndEndRenderPass("copy texture with draw"); err != nil {
			return err
		}
		return t.copySubImageWithDraw(drawCopy{
			dstLevel: level, dstLayer: dstLayer, layerCount: 1, dstOffset: dbox.Offset, dstFb: dstFb,
			src: src.image, srcViews: src.views, srcLevel: src.level, srcLayer: src.layer, srcBox: area, flipY: flipY,
		})
	}

	if format.Get(dstFb.Intended).Compressed {
		return fmt.Errorf("%w: copy into compressed %v", ErrNotImplemented, dstFb.Intended)
	}
	t.ctx.perfWarning(&t.ctx.perf.CPUCopies, "Texture copied on CPU due to format restrictions", "label", t.label)
	data, err := src.image.ReadPixels(image.ReadParams{
		Level:  src.image.ToVkLevel(src.level),
		Layer:  src.layer,
		Box:    area,
		Format: dstFb.Intended,
		FlipY:  flipY,
		Reason: "texture copied on CPU",
	})
	if err != nil {
		return err
	}
	if err := t.image.StageHostUpdate(level, dstLayer, 1, dbox, dstFb, image.HostSource{Data: data, Format: dstFb.Intended}); err != nil {
		return err
	}
	if t.shouldUpdateBeFlushed(idx.Level, dstFb.Actual) {
		return t.image.FlushStagedUpdates(level, level+1, dstLayer, dstLayer+1, t.redefinedMask(), nil)
	}
	return t.ensureImageInitializedIfUpdatesNeedStageOrFlush(idx.Level, applyDefer)
}

// renderTargetSource returns the copy source of area of rt.
func renderTargetSource(rt *RenderTarget, area gpucore.Box) (copySource, error) {
	if rt == nil || rt.image == nil || !rt.image.Valid() {
		return copySource{}, fmt.Errorf("%w: read framebuffer", ErrNoImage)
	}
	area.Offset.Z, area.Extent.Depth = 0, 1
	cs := copySource{image: rt.image, level: rt.level, layer: rt.layer, layerCount: 1, box: area}
	if rt.image == rt.tex.image {
		cs.views = rt.tex.views
	}
	return cs, nil
}

// CopyImage defines level idx with format f and the size of area, and
// fills it from area of src.
func (t *Texture) CopyImage(idx Index, src *RenderTarget, area gpucore.Box, f format.ID, flipY bool) error {
	if err := t.begin(); err != nil {
		return err
	}
	if t.state.Immutable {
		return ErrImmutable
	}
	t.checkIndex(idx)
	cs, err := renderTargetSource(src, area)
	if err != nil {
		return err
	}
	if err := src.tex.ensureImageInitialized(enabledLevels); err != nil {
		return err
	}
	cs, done, err := t.snapshotIfSelf(cs)
	if err != nil {
		return err
	}
	defer done()

	size := gpucore.Extent3D{Width: area.Extent.Width, Height: area.Extent.Height, Depth: 1}
	t.orphanImages()
	t.redefineLevel(idx, size, f)
	t.state.setDesc(t.face(idx), idx.Level, LevelDesc{Size: size, Format: f, Samples: 1})
	if size.Width == 0 || size.Height == 0 {
		return nil
	}

	fb := t.fallbackFor(f)
	canTransfer := canCopyWithTransferForTexImage(t.ctx.features, flipY, cs.image.Fallback(), fb)
	if err := t.ensureRenderableIfCannotTransfer(canTransfer); err != nil {
		return err
	}
	fb = t.fallbackFor(f)
	if t.image == nil {
		t.ensureImageAllocated(fb)
	}
	return t.copySubImageImpl(idx, gpucore.Offset3D{}, fb, cs, flipY)
}

// CopySubImage copies area of src into the defined level idx at
// dstOffset.
func (t *Texture) CopySubImage(idx Index, dstOffset gpucore.Offset3D, src *RenderTarget, area gpucore.Box, flipY bool) error {
	if err := t.begin(); err != nil {
		return err
	}
	t.checkIndex(idx)
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() {
		return fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	if err := checkBox(gpucore.Box{Offset: dstOffset, Extent: gpucore.Extent3D{Width: area.Extent.Width, Height: area.Extent.Height, Depth: 1}}, d.Size); err != nil {
		return err
	}
	cs, err := renderTargetSource(src, area)
	if err != nil {
		return err
	}
	if err := src.tex.ensureImageInitialized(enabledLevels); err != nil {
		return err
	}
	fb := t.fallbackFor(d.Format)
	canTransfer := canCopyWithTransferForTexImage(t.ctx.features, flipY, cs.image.Fallback(), fb)
	if err := t.ensureRenderableIfCannotTransfer(canTransfer); err != nil {
		return err
	}
	fb = t.fallbackFor(d.Format)
	if t.image == nil {
		t.ensureImageAllocated(fb)
	}
	cs, done, err := t.snapshotIfSelf(cs)
	if err != nil {
		return err
	}
	defer done()
	return t.copySubImageImpl(idx, dstOffset, fb, cs, flipY)
}

// textureSource returns the copy source of box of level srcIdx of src,
// with its image initialized. A level the image of src cannot hold is
// served from a staging image, which free destroys.
func textureSource(src *Texture, srcIdx Index, box gpucore.Box) (cs copySource, free func(), err error) {
	free = func() {}
	if src == nil || src.destroyed {
		return copySource{}, free, fmt.Errorf("%w: source texture", ErrDestroyed)
	}
	if err := src.ensureImageInitialized(enabledLevels); err != nil {
		return copySource{}, free, err
	}
	if src.image == nil || !src.image.Valid() {
		return copySource{}, free, fmt.Errorf("%w: source texture %q", ErrNoImage, src.label)
	}
	level := src.nativeLevel(srcIdx.Level)
	layer, count, sbox := src.nativeRegion(srcIdx, box)
	if src.levelOutsideImage(level) {
		staging, err := src.newLevelStagingImage(srcIdx)
		if err != nil {
			return copySource{}, free, err
		}
		return copySource{image: staging, level: 0, layer: layer, layerCount: count, box: sbox}, staging.Destroy, nil
	}
	if !src.image.IsAllocated(level) {
		return copySource{}, free, fmt.Errorf("%w: source level %d", ErrNoImage, srcIdx.Level)
	}
	return copySource{image: src.image, level: level, layer: layer, layerCount: count, box: sbox, views: src.views}, free, nil
}

// CopyTexture defines level idx with format f and the size of level
// srcIdx of src, and fills it from that level.
func (t *Texture) CopyTexture(idx Index, f format.ID, src *Texture, srcIdx Index, opts CopyTextureOptions) error {
	if err := t.begin(); err != nil {
		return err
	}
	if t.state.Immutable {
		return ErrImmutable
	}
	t.checkIndex(idx)
	if src == nil {
		return fmt.Errorf("%w: source texture", ErrDestroyed)
	}
	sd := src.Desc(src.face(srcIdx), srcIdx.Level)
	if !sd.Defined() {
		return fmt.Errorf("%w: source level %d", ErrNoImage, srcIdx.Level)
	}
	box := fullBox(sd.Size)
	cs, free, err := textureSource(src, srcIdx, box)
	if err != nil {
		return err
	}
	defer free()
	cs, done, err := t.snapshotIfSelf(cs)
	if err != nil {
		return err
	}
	defer done()

	size := sd.Size
	if src.state.Type.IsArray() != t.state.Type.IsArray() || t.state.Type == TextureCube {
		size.Depth = 1
		box.Extent.Depth = 1
	}
	t.orphanImages()
	t.redefineLevel(idx, size, f)
	t.state.setDesc(t.face(idx), idx.Level, LevelDesc{Size: size, Format: f, Samples: 1})

	fb := t.fallbackFor(f)
	if err := t.ensureRenderableIfCannotTransfer(canCopyWithTransferForCopyTexture(t.ctx.features, opts, cs.image.Fallback(), fb)); err != nil {
		return err
	}
	fb = t.fallbackFor(f)
	if t.image == nil {
		t.ensureImageAllocated(fb)
	}
	return t.copySubTextureImpl(idx, gpucore.Offset3D{}, fb, cs, opts)
}

// CopySubTexture copies box of level srcIdx of src into the defined level
// idx at dstOffset.
func (t *Texture) CopySubTexture(idx Index, dstOffset gpucore.Offset3D, src *Texture, srcIdx Index, box gpucore.Box, opts CopyTextureOptions) error {
	if err := t.begin(); err != nil {
		return err
	}
	t.checkIndex(idx)
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() {
		return fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	if err := checkBox(gpucore.Box{Offset: dstOffset, Extent: box.Extent}, d.Size); err != nil {
		return err
	}
	cs, free, err := textureSource(src, srcIdx, box)
	if err != nil {
		return err
	}
	defer free()
	fb := t.fallbackFor(d.Format)
	if err := t.ensureRenderableIfCannotTransfer(canCopyWithTransferForCopyTexture(t.ctx.features, opts, cs.image.Fallback(), fb)); err != nil {
		return err
	}
	fb = t.fallbackFor(d.Format)
	if t.image == nil {
		t.ensureImageAllocated(fb)
	}
	cs, done, err := t.snapshotIfSelf(cs)
	if err != nil {
		return err
	}
	defer done()
	return t.copySubTextureImpl(idx, dstOffset, fb, cs, opts)
}

// copySubTextureImpl copies a texture region into the texture level.
func (t *Texture) copySubTextureImpl(idx Index, dstOffset gpucore.Offset3D, dstFb format.Fallback, src copySource, opts CopyTextureOptions) error {
	extent := src.box.Extent
	if t.state.Type.IsArray() {
		extent.Depth = src.layerCount
	}
	dstLayer, _, dbox := t.nativeRegion(idx, gpucore.Box{Offset: dstOffset, Extent: extent})
	level := t.nativeLevel(idx.Level)
	f := t.ctx.features
	srcFb := src.image.Fallback()

	switch {
	case canCopyWithTransferForCopyTexture(f, opts, srcFb, dstFb):
		return t.copyWithTransfer(idx, dstLayer, dbox, dstFb, src)
	case canCopyWithDraw(f, srcFb.Actual, dstFb.Actual) && src.box.Extent.Depth <= 1:
		if err := t.ctx.dev.FlushCommandsAndEndRenderPass("copy texture with draw"); err != nil {
			return err
		}
		return t.copySubImageWithDraw(drawCopy{
			dstLevel: level, dstLayer: dstLayer, layerCount: src.layerCount, dstOffset: dbox.Offset, dstFb: dstFb,
			src: src.image, srcViews: src.views, srcLevel: src.level, srcLayer: src.layer, srcBox: src.box,
			flipY: opts.FlipY, premultiply: opts.PremultiplyAlpha, unmultiply: opts.UnmultiplyAlpha,
		})
	}

	if format.Get(dstFb.Intended).Compressed || format.Get(srcFb.Actual).Compressed {
		return fmt.Errorf("%w: CPU copy between %v and %v", ErrNotImplemented, srcFb.Intended, dstFb.Intended)
	}
	t.ctx.perfWarning(&t.ctx.perf.CPUCopies, "Texture copied on CPU due to format restrictions", "label", t.label)
	cv := format.Converter{
		Src:              srcFb.Actual,
		SrcLoad:          srcFb.Load,
		Dst:              dstFb.Intended,
		DstStore:         format.Identity,
		FlipY:            opts.FlipY,
		PremultiplyAlpha: opts.PremultiplyAlpha,
		UnmultiplyAlpha:  opts.UnmultiplyAlpha,
		Runner:           t.ctx.runner,
	}
	si, di := format.Get(srcFb.Actual), format.Get(dstFb.Intended)
	w, h := int(src.box.Extent.Width), int(src.box.Extent.Height)
	slices := int(max(src.box.Extent.Depth, 1))
	srcVk := src.image.ToVkLevel(src.level)
	count := max(src.layerCount, 1)
	for i := range count {
		raw, err := src.image.ReadPixels(image.ReadParams{
			Level:  srcVk,
			Layer:  src.layer + i,
			Box:    src.box,
			Reason: "texture copied on CPU",
		})
		if err != nil {
			return err
		}
		out := make([]byte, di.DataSize(w, h, slices))
		for z := range slices {
			cv.Rows(out[z*di.DataSize(w, h, 1):], di.RowPitch(w), raw[z*si.DataSize(w, h, 1):], si.RowPitch(w), w, h)
		}
		if err := t.image.StageHostUpdate(level, dstLayer+i, 1, dbox, dstFb, image.HostSource{Data: out, Format: dstFb.Intended}); err != nil {
			return err
		}
	}
	if t.shouldUpdateBeFlushed(idx.Level, dstFb.Actual) {
		return t.image.FlushStagedUpdates(level, level+1, dstLayer, dstLayer+count, t.redefinedMask(), nil)
	}
	return t.ensureImageInitializedIfUpdatesNeedStageOrFlush(idx.Level, applyDefer)
}

// CopyCompressedTexture defines level 0 from level 0 of src, which must
// be compressed, and copies it verbatim.
func (t *Texture) CopyCompressedTexture(src *Texture) error {
	if err := t.begin(); err != nil {
		return err
	}
	if t.state.Immutable {
		return ErrImmutable
	}
	if src == nil {
		return fmt.Errorf("%w: source texture", ErrDestroyed)
	}
	sd := src.Desc(0, 0)
	if !sd.Defined() || !format.Get(sd.Format).Compressed {
		return fmt.Errorf("glvk: level 0 of %q is not a compressed image", src.label)
	}
	cs, free, err := textureSource(src, LevelIndex(0), fullBox(sd.Size))
	if err != nil {
		return err
	}
	defer free()
	if cs.image == t.image {
		return nil
	}
	fb := t.fallbackFor(sd.Format)
	if !canCopyWithTransferForTexImage(t.ctx.features, false, cs.image.Fallback(), fb) {
		return fmt.Errorf("%w: compressed copy without transfer support", ErrNotImplemented)
	}
	t.orphanImages()
	t.redefineLevel(LevelIndex(0), sd.Size, sd.Format)
	t.state.setDesc(0, 0, LevelDesc{Size: sd.Size, Format: sd.Format, Samples: 1})
	if t.image == nil {
		t.ensureImageAllocated(fb)
	}
	dstLayer, _, dbox := t.nativeRegion(LevelIndex(0), fullBox(sd.Size))
	return t.copyWithTransfer(LevelIndex(0), dstLayer, dbox, fb, cs)
}

// CopyImageSubData copies box of level srcIdx of src into level idx at
// dstOffset without conversion. Both formats must have the same texel
// size.
func (t *Texture) CopyImageSubData(idx Index, dstOffset gpucore.Offset3D, src *Texture, srcIdx Index, box gpucore.Box) error {
	if err := t.begin(); err != nil {
		return err
	}
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() {
		return fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	if err := t.ensureImageInitialized(enabledLevels); err != nil {
		return err
	}
	cs, free, err := textureSource(src, srcIdx, box)
	if err != nil {
		return err
	}
	defer free()
	if t.image == nil || !t.image.Valid() {
		return fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	si, di := format.Get(cs.image.Actual()), format.Get(t.image.Actual())
	if si.PixelBytes != di.PixelBytes || si.BlockW != di.BlockW || si.BlockH != di.BlockH {
		return fmt.Errorf("%w: copy between %v and %v", ErrNotImplemented, si.ID, di.ID)
	}
	cs, done, err := t.snapshotIfSelf(cs)
	if err != nil {
		return err
	}
	defer done()
	extent := cs.box.Extent
	if t.state.Type.IsArray() {
		extent.Depth = cs.layerCount
	}
	dstLayer, _, dbox := t.nativeRegion(idx, gpucore.Box{Offset: dstOffset, Extent: extent})
	return t.copyWithTransfer(idx, dstLayer, dbox, t.image.Fallback(), cs)
}
