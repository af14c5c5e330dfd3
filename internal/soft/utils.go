package soft

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	glimage "github.com/gogpu/glvk/internal/image"
	"github.com/gogpu/glvk/internal/mipgen"
)

// utils runs the draw and compute helpers on the CPU.
type utils struct {
	d *Device
}

var _ gpucore.Utils = utils{}

func (u utils) commands(cmd gpucore.CommandBuffer) (*commandBuffer, error) {
	c, ok := cmd.(*commandBuffer)
	if !ok || c.d != u.d {
		return nil, fmt.Errorf("soft: command buffer %T not recorded on this device", cmd)
	}
	return c, nil
}

func (u utils) drawEnabled() error {
	if !u.d.features.SupportsDrawUtils {
		return fmt.Errorf("soft: draw helper: %w", gpucore.ErrUnsupported)
	}
	return nil
}

// checkView reports whether v is a view of level of image h with usage.
// InvalidHandle passes.
func (u utils) checkView(v gpucore.ViewHandle, h gpucore.ImageHandle, level uint32, usage gpucore.ImageUsage) error {
	if v == gpucore.InvalidHandle {
		return nil
	}
	desc, ok := u.d.views[v]
	if !ok {
		return fmt.Errorf("%w: view %d", gpucore.ErrInvalidHandle, v)
	}
	r := desc.Range
	if desc.Image != h || level < r.BaseLevel || level >= r.BaseLevel+r.LevelCount {
		return fmt.Errorf("%w: view %d does not cover level %d of image %d", ErrInvalidDesc, v, level, h)
	}
	if desc.Usage&usage == 0 {
		return fmt.Errorf("%w: view %d lacks usage %#x", ErrInvalidDesc, v, usage)
	}
	return nil
}

// ClearRegion implements gpucore.Utils.
func (u utils) ClearRegion(cmd gpucore.CommandBuffer, p gpucore.ClearRegionParams) error {
	if err := u.drawEnabled(); err != nil {
		return err
	}
	c, err := u.commands(cmd)
	if err != nil {
		return err
	}
	img, ok := c.image(p.Image, gpucore.LayoutColorAttachmentOptimal, OpClearRegion)
	if !ok {
		return gpucore.ErrInvalidHandle
	}
	e := img.extent(p.Level)
	b := p.Box
	if b.Offset.X < 0 || b.Offset.Y < 0 || uint32(b.Offset.X)+b.Extent.Width > e.Width ||
		uint32(b.Offset.Y)+b.Extent.Height > e.Height {
		return fmt.Errorf("%w: clear region outside level %d", ErrOutOfBounds, p.Level)
	}
	mask := p.Mask
	if mask == 0 {
		mask = 0xf
	}
	info := img.info()
	pitch := info.RowPitch(int(e.Width))
	for z := range max(b.Extent.Depth, 1) {
		for s := range img.desc.Samples {
			off := img.texelOffset(p.Level, p.Layer, s, int(b.Offset.X), int(b.Offset.Y), int(b.Offset.Z)+int(z))
			format.FillMasked(img.levels[p.Level][off:], pitch, img.desc.Format, p.Color, mask,
				int(b.Extent.Width), int(b.Extent.Height))
		}
	}
	u.d.record(Command{Op: OpClearRegion, Image: p.Image, Level: p.Level, Layer: p.Layer})
	return nil
}

// CopyImageWithDraw implements gpucore.Utils.
func (u utils) CopyImageWithDraw(cmd gpucore.CommandBuffer, p gpucore.DrawCopyParams) error {
	if err := u.drawEnabled(); err != nil {
		return err
	}
	c, err := u.commands(cmd)
	if err != nil {
		return err
	}
	if p.Src == p.Dst {
		return fmt.Errorf("soft: draw copy of image %d onto itself", p.Src)
	}
	if err := u.checkView(p.SrcView, p.Src, p.SrcLevel, gpucore.UsageSampled); err != nil {
		return err
	}
	if err := u.checkView(p.DstView, p.Dst, p.DstLevel, gpucore.UsageColorAttachment); err != nil {
		return err
	}
	si, ok := c.image(p.Src, gpucore.LayoutShaderReadOnlyOptimal, OpDrawCopy)
	di, dok := c.image(p.Dst, gpucore.LayoutColorAttachmentOptimal, OpDrawCopy)
	if !ok || !dok {
		return gpucore.ErrInvalidHandle
	}
	cv := format.Converter{
		Src:              p.SrcFormat,
		SrcLoad:          p.SrcLoad,
		Dst:              p.DstFormat,
		DstStore:         p.DstStore,
		FlipY:            p.FlipY,
		PremultiplyAlpha: p.PremultiplyAlpha,
		UnmultiplyAlpha:  p.UnmultiplyAlpha,
	}
	se, de := si.extent(p.SrcLevel), di.extent(p.DstLevel)
	sInfo, dInfo := si.info(), di.info()
	w, h := int(p.Extent.Width), int(p.Extent.Height)
	for z := range int(max(p.Extent.Depth, 1)) {
		so := si.texelOffset(p.SrcLevel, p.SrcLayer, 0, int(p.SrcOffset.X), int(p.SrcOffset.Y), int(p.SrcOffset.Z)+z)
		do := di.texelOffset(p.DstLevel, p.DstLayer, 0, int(p.DstOffset.X), int(p.DstOffset.Y), int(p.DstOffset.Z)+z)
		cv.Rows(di.levels[p.DstLevel][do:], dInfo.RowPitch(int(de.Width)),
			si.levels[p.SrcLevel][so:], sInfo.RowPitch(int(se.Width)), w, h)
	}
	u.d.record(Command{Op: OpDrawCopy, Image: p.Dst, Src: p.Src, Level: p.DstLevel, Layer: p.DstLayer})
	return nil
}

// GenerateMipmapWithDraw implements gpucore.Utils.
func (u utils) GenerateMipmapWithDraw(cmd gpucore.CommandBuffer, p gpucore.MipmapParams) error {
	if err := u.drawEnabled(); err != nil {
		return err
	}
	if p.DstLevelCount != 1 || len(p.DstViews) > 1 {
		return fmt.Errorf("%w: draw mipmap step writes %d levels", ErrInvalidDesc, p.DstLevelCount)
	}
	if err := u.checkView(p.SrcView, p.Image, p.SrcLevel, gpucore.UsageSampled); err != nil {
		return err
	}
	for _, v := range p.DstViews {
		if err := u.checkView(v, p.Image, p.SrcLevel+1, gpucore.UsageColorAttachment); err != nil {
			return err
		}
	}
	return u.mipmap(cmd, p, gpucore.LayoutColorAttachmentOptimal, OpDrawMipmap)
}

// GenerateMipmapWithCompute implements gpucore.Utils.
func (u utils) GenerateMipmapWithCompute(cmd gpucore.CommandBuffer, p gpucore.MipmapParams) error {
	if !u.d.features.GenerateMipmapWithCompute {
		return fmt.Errorf("soft: compute mipmap: %w", gpucore.ErrUnsupported)
	}
	if p.DstLevelCount == 0 || p.DstLevelCount > u.d.features.MaxGenerateMipmapLevels {
		return fmt.Errorf("%w: compute mipmap step writes %d levels", ErrInvalidDesc, p.DstLevelCount)
	}
	if uint32(len(p.DstViews)) != p.DstLevelCount {
		return fmt.Errorf("%w: %d storage views for %d levels", ErrInvalidDesc, len(p.DstViews), p.DstLevelCount)
	}
	if err := u.checkView(p.SrcView, p.Image, p.SrcLevel, gpucore.UsageSampled); err != nil {
		return err
	}
	for i, v := range p.DstViews {
		if v == gpucore.InvalidHandle {
			return fmt.Errorf("%w: no storage view of level %d", ErrInvalidDesc, p.SrcLevel+1+uint32(i))
		}
		if err := u.checkView(v, p.Image, p.SrcLevel+1+uint32(i), gpucore.UsageStorage); err != nil {
			return err
		}
	}
	if img, ok := u.d.images[p.Image]; ok && p.SrcLevel+1 < img.desc.Levels {
		e := img.extent(p.SrcLevel + 1)
		if p.WorkgroupsX*mipgen.WorkgroupSize < e.Width || p.WorkgroupsY*mipgen.WorkgroupSize < e.Height {
			return fmt.Errorf("%w: dispatch %dx%d does not cover %dx%d", ErrInvalidDesc, p.WorkgroupsX, p.WorkgroupsY, e.Width, e.Height)
		}
	}
	return u.mipmap(cmd, p, gpucore.LayoutGeneral, OpComputeMipmap)
}

func (u utils) mipmap(cmd gpucore.CommandBuffer, p gpucore.MipmapParams, layout gpucore.NativeLayout, op Op) error {
	c, err := u.commands(cmd)
	if err != nil {
		return err
	}
	img, ok := c.image(p.Image, layout, op)
	if !ok {
		return gpucore.ErrInvalidHandle
	}
	if p.SrcLevel+p.DstLevelCount >= img.desc.Levels || p.Layer >= img.desc.Layers {
		return fmt.Errorf("%w: mipmap levels %d+%d of %d", ErrOutOfBounds, p.SrcLevel, p.DstLevelCount, img.desc.Levels)
	}
	info := img.info()
	for l := p.SrcLevel; l < p.SrcLevel+p.DstLevelCount; l++ {
		e := img.extent(l)
		off := img.texelOffset(l, p.Layer, 0, 0, 0, 0)
		src := glimage.MipLevel{
			Width:  int(e.Width),
			Height: int(e.Height),
			Depth:  int(e.Depth),
			Data:   img.levels[l][off : off+img.layerSize(l)],
		}
		dst := glimage.Downsample(info, src)
		doff := img.texelOffset(l+1, p.Layer, 0, 0, 0, 0)
		copy(img.levels[l+1][doff:], dst.Data)
		u.d.record(Command{Op: op, Image: p.Image, Level: l + 1, Layer: p.Layer})
	}
	return nil
}
