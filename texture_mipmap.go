package glvk

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
	"github.com/gogpu/glvk/internal/layout"
	"github.com/gogpu/glvk/internal/mipgen"
)

// GenerateMipmap fills levels above the base level from it, defining
// them first.
func (t *Texture) GenerateMipmap() error {
	if err := t.begin(); err != nil {
		return err
	}
	bd := t.state.BaseDesc()
	if !bd.Defined() {
		return fmt.Errorf("%w: base level %d", ErrNoImage, t.state.EffectiveBaseLevel())
	}
	info := format.Get(bd.Format)
	if bd.Samples > 1 || info.Compressed || info.HasDepthOrStencil() {
		return fmt.Errorf("%w: mipmap generation of %v", ErrNotImplemented, bd.Format)
	}
	t.orphanExported()

	base := t.state.EffectiveBaseLevel()
	top := t.state.MipmapMaxLevel()
	if !t.state.Immutable {
		size := bd.Size
		for l := base + 1; l <= top; l++ {
			size = gpucore.Extent3D{
				Width:  max(size.Width>>1, 1),
				Height: max(size.Height>>1, 1),
				Depth:  size.Depth,
			}
			if t.state.Type == Texture3D {
				size.Depth = max(size.Depth>>1, 1)
			}
			for face := range uint32(t.state.Type.faces()) {
				t.state.setDesc(face, l, LevelDesc{Size: size, Format: bd.Format, Samples: 1})
			}
		}
	}
	if t.image == nil {
		t.ensureImageAllocated(t.fallbackFor(bd.Format))
	}
	if err := t.SyncState(0, CommandGenerateMipmap); err != nil {
		return err
	}
	if base == top {
		return nil
	}
	img := t.image
	if img == nil || !img.Valid() {
		return fmt.Errorf("%w: mipmap generation without an image", ErrNoImage)
	}
	baseVk := img.ToVkLevel(t.nativeLevel(base))
	count := min(top-base, img.LevelCount()-1-uint32(baseVk))
	if count == 0 {
		return nil
	}

	f := t.ctx.features
	actual := img.Actual()
	colorUsage := img.Usage()&gpucore.UsageColorAttachment != 0
	switch {
	case t.canGenerateMipmapWithCompute(actual) && img.Usage()&gpucore.UsageStorage != 0:
		return t.generateMipmapWithCompute(img, baseVk, count)
	case t.state.SRGBOverride != format.ColorspaceDefault && f.SupportsDrawUtils && colorUsage:
		return t.generateMipmapWithDraw(img, baseVk, count)
	case f.HasFormatFeatures(actual, format.FeatureBlit|format.FeatureLinearFilter):
		return t.generateMipmapWithBlit(img, baseVk, count)
	case f.SupportsDrawUtils && colorUsage:
		return t.generateMipmapWithDraw(img, baseVk, count)
	}
	return t.generateMipmapOnCPU(img, baseVk, count)
}

func (t *Texture) generateMipmapWithCompute(img *image.Storage, baseVk image.VkLevel, count uint32) error {
	layers := img.LayerCount()
	for _, b := range mipgen.Plan(uint32(baseVk), count, t.ctx.features.MaxGenerateMipmapLevels) {
		r := gpucore.SubresourceRange{Aspect: gpucore.AspectColor, BaseLevel: b.SrcLevel, LevelCount: b.DstLevelCount + 1, LayerCount: layers}
		var acc gpucore.Access
		acc.OnImageComputeShaderWrite(img.Handle(), r)
		cmd, err := t.ctx.dev.OutsideRenderPassCommandBuffer(&acc)
		if err != nil {
			return err
		}
		img.RecordWriteBarrier(cmd, gpucore.AspectColor, layout.ComputeShaderWrite, image.VkLevel(b.SrcLevel), b.DstLevelCount+1, 0, layers)
		srcView, err := t.views.CopySrc(img, img.ToGLLevel(image.VkLevel(b.SrcLevel)))
		if err != nil {
			return err
		}
		dstViews := make([]gpucore.ViewHandle, b.DstLevelCount)
		for l := range b.DstLevelCount {
			if dstViews[l], err = t.views.Storage(img, img.ToGLLevel(image.VkLevel(b.SrcLevel+1+l))); err != nil {
				return err
			}
		}
		wx, wy := mipgen.Workgroups(img.LevelExtent(image.VkLevel(b.SrcLevel)))
		err = t.ctx.dev.Utils().GenerateMipmapWithCompute(cmd, gpucore.MipmapParams{
			Image:         img.Handle(),
			Format:        img.Actual(),
			Extent:        img.Extent(),
			SrcLevel:      b.SrcLevel,
			DstLevelCount: b.DstLevelCount,
			Filter:        gpucore.FilterLinear,
			SrcView:       srcView,
			DstViews:      dstViews,
			WorkgroupsX:   wx,
			WorkgroupsY:   wy,
		})
		if err != nil {
			return err
		}
		for l := range b.DstLevelCount {
			img.RestoreContent(image.VkLevel(b.SrcLevel+1+l), 0, layers, gpucore.AspectColor)
		}
	}
	t.ctx.log.Debug("mipmaps generated with compute", "label", t.label, "levels", count)
	return nil
}

func (t *Texture) generateMipmapWithDraw(img *image.Storage, baseVk image.VkLevel, count uint32) error {
	layers := img.LayerCount()
	drawFormat := format.ApplyColorspace(img.Actual(), t.state.SRGBOverride)
	for i := range count {
		src := baseVk + image.VkLevel(i)
		r := gpucore.SubresourceRange{Aspect: gpucore.AspectColor, BaseLevel: uint32(src), LevelCount: 2, LayerCount: layers}
		var acc gpucore.Access
		acc.OnImageDrawWrite(img.Handle(), r)
		cmd, err := t.ctx.dev.OutsideRenderPassCommandBuffer(&acc)
		if err != nil {
			return err
		}
		img.RecordWriteBarrier(cmd, gpucore.AspectColor, layout.ColorWrite, src, 2, 0, layers)
		srcGL := img.ToGLLevel(src)
		srcView, err := t.views.Fetch(img, srcGL, srcGL)
		if err != nil {
			return err
		}
		for layer := range layers {
			dstView, err := t.views.Draw(img, srcGL+1, layer, 1)
			if err != nil {
				return err
			}
			err = t.ctx.dev.Utils().GenerateMipmapWithDraw(cmd, gpucore.MipmapParams{
				Image:         img.Handle(),
				Format:        drawFormat,
				Extent:        img.Extent(),
				SrcLevel:      uint32(src),
				DstLevelCount: 1,
				Layer:         layer,
				Filter:        gpucore.FilterLinear,
				SrcView:       srcView,
				DstViews:      []gpucore.ViewHandle{dstView},
			})
			if err != nil {
				return err
			}
		}
		img.RestoreContent(src+1, 0, layers, gpucore.AspectColor)
	}
	t.ctx.log.Debug("mipmaps generated with draw", "label", t.label, "levels", count)
	return nil
}

func (t *Texture) generateMipmapWithBlit(img *image.Storage, baseVk image.VkLevel, count uint32) error {
	layers := img.LayerCount()
	aspect := img.Aspects()
	for i := range count {
		src := baseVk + image.VkLevel(i)
		r := gpucore.SubresourceRange{Aspect: aspect, BaseLevel: uint32(src), LevelCount: 2, LayerCount: layers}
		var acc gpucore.Access
		acc.OnImageTransferWrite(img.Handle(), r)
		cmd, err := t.ctx.dev.OutsideRenderPassCommandBuffer(&acc)
		if err != nil {
			return err
		}
		img.RecordWriteBarrier(cmd, aspect, layout.TransferSrcDst, src, 2, 0, layers)
		se, de := img.LevelExtent(src), img.LevelExtent(src+1)
		cmd.BlitImage(img.Handle(), gpucore.LayoutGeneral, img.Handle(), gpucore.LayoutGeneral, gpucore.FilterLinear, gpucore.ImageBlit{
			Aspect:     aspect,
			SrcLevel:   uint32(src),
			DstLevel:   uint32(src + 1),
			LayerCount: layers,
			SrcOffsets: [2]gpucore.Offset3D{{}, {X: int32(se.Width), Y: int32(se.Height), Z: int32(se.Depth)}},
			DstOffsets: [2]gpucore.Offset3D{{}, {X: int32(de.Width), Y: int32(de.Height), Z: int32(de.Depth)}},
		})
		img.RestoreContent(src+1, 0, layers, aspect)
	}
	t.ctx.log.Debug("mipmaps generated with blit", "label", t.label, "levels", count)
	return nil
}

// generateMipmapOnCPU reads the base level back, filters every layer in
// parallel and stages the results.
func (t *Texture) generateMipmapOnCPU(img *image.Storage, baseVk image.VkLevel, count uint32) error {
	t.ctx.perfWarning(&t.ctx.perf.CPUMipmaps, "Mipmap generated on CPU due to format restrictions", "label", t.label)
	layers := img.LayerCount()
	actual := img.Actual()
	e := img.LevelExtent(baseVk)

	chains := make([][]image.MipLevel, layers)
	for layer := range layers {
		data, err := img.ReadPixels(image.ReadParams{
			Level:  baseVk,
			Layer:  layer,
			Box:    img.LevelBox(baseVk),
			Reason: "mipmap generated on CPU",
		})
		if err != nil {
			return err
		}
		chains[layer] = []image.MipLevel{{Width: int(e.Width), Height: int(e.Height), Depth: int(e.Depth), Data: data}}
	}

	var g errgroup.Group
	for layer := range layers {
		g.Go(func() error {
			chains[layer] = image.GenerateMipmaps(actual, chains[layer][0], int(count)+1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	raw := img.Fallback()
	raw.Intended = actual
	raw.Store = format.Identity
	raw.Decompress = nil
	for i := uint32(1); i <= count; i++ {
		vk := baseVk + image.VkLevel(i)
		level := img.ToGLLevel(vk)
		box := img.LevelBox(vk)
		for layer := range layers {
			chain := chains[layer]
			if int(i) >= len(chain) {
				continue
			}
			if err := img.StageHostUpdate(level, layer, 1, box, raw, image.HostSource{Data: chain[i].Data, Format: actual}); err != nil {
				return err
			}
		}
	}
	first := img.ToGLLevel(baseVk + 1)
	return img.FlushStagedUpdates(first, first+image.GLLevel(count), 0, layers, t.redefinedMask(), nil)
}
