package glvk

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
	"github.com/gogpu/glvk/internal/layout"
)

type rtKey struct {
	level      image.GLLevel
	layer      uint32
	layerCount uint32
	samples    uint32
}

type msKey struct {
	samples uint32
	level   image.GLLevel
}

// RenderTarget is a level and layer range of a texture image rendered
// to as an attachment. Rendering goes to DrawImage, which for implicit
// multisampling and YUV formats is a companion image resolved into Image
// by Resolve.
type RenderTarget struct {
	tex        *Texture
	image      *image.Storage
	ms         *image.Storage
	yuvDraw    *image.Storage
	serial     uint64
	level      image.GLLevel
	layer      uint32
	layerCount uint32
	samples    uint32
}

// LoadOp is how a render pass starts on a render target.
type LoadOp struct {
	// Clear is set when the render pass clears instead of loading.
	Clear   bool
	Color   format.Color
	Depth   float64
	Stencil uint32
}

// AttachmentRenderTarget returns the render target of idx. samples above
// one on a single-sampled texture renders with implicit multisampling.
// For arrays a zero idx.LayerCount attaches every layer.
func (t *Texture) AttachmentRenderTarget(idx Index, samples uint32) (*RenderTarget, error) {
	if err := t.begin(); err != nil {
		return nil, err
	}
	t.checkIndex(idx)
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() {
		return nil, fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	samples = max(samples, 1)
	f := t.ctx.features
	if samples > f.MaxSamples {
		return nil, fmt.Errorf("%w: %d samples", gpucore.ErrUnsupported, samples)
	}
	t.SetBoundAsAttachment()

	implicitMS := samples > 1 && !t.state.Type.IsMultisample()
	if implicitMS && f.SupportsMultisampledRenderToSingleSampled && t.owns && !t.msrttBound {
		t.msrttBound = true
		if t.image != nil && t.image.Valid() && t.image.Flags()&gpucore.CreateMultisampledRenderToSingleSampled == 0 {
			if err := t.respecifyImageStorage(); err != nil {
				return nil, err
			}
		}
	}
	if t.image == nil {
		t.ensureImageAllocated(t.fallbackFor(d.Format))
	}
	if err := t.respecifyImageStorageIfNecessary(CommandDraw); err != nil {
		return nil, err
	}
	if err := t.ensureImageInitialized(enabledLevels); err != nil {
		return nil, err
	}
	if !t.image.Valid() {
		if err := t.initImage(t.baseFallback(), enabledLevels); err != nil {
			return nil, err
		}
	}
	level := t.nativeLevel(idx.Level)
	if !t.image.IsAllocated(level) {
		return nil, fmt.Errorf("%w: level %d is outside the image", ErrNoImage, idx.Level)
	}
	t.dirty &^= DirtyBoundAsAttachment

	_, arrayLayers := imageExtent(t.state.Type, d.Size)
	layer, count := t.layerRange(idx, arrayLayers)
	key := rtKey{level: level, layer: layer, layerCount: count, samples: samples}
	if rt, ok := t.renderTargets[key]; ok && rt.image == t.image && rt.serial == t.image.Serial() {
		return rt, nil
	}

	rt := &RenderTarget{tex: t, image: t.image, serial: t.image.Serial(), level: level, layer: layer, layerCount: count, samples: samples}
	if implicitMS && t.image.Flags()&gpucore.CreateMultisampledRenderToSingleSampled == 0 {
		ms, err := t.multisampledImage(samples, level)
		if err != nil {
			return nil, err
		}
		rt.ms = ms
	}
	if format.Get(t.image.Actual()).YUV && !f.SupportsYUVColorAttachment {
		yuv, err := t.yuvDrawImage()
		if err != nil {
			return nil, err
		}
		rt.yuvDraw = yuv
	}
	if t.renderTargets == nil {
		t.renderTargets = make(map[rtKey]*RenderTarget)
	}
	t.renderTargets[key] = rt
	return rt, nil
}

// multisampledImage returns the multisampled companion of level.
func (t *Texture) multisampledImage(samples uint32, level image.GLLevel) (*image.Storage, error) {
	key := msKey{samples: samples, level: level}
	if ms, ok := t.msImages[key]; ok {
		return ms, nil
	}
	usage := gpucore.UsageTransferSrc
	if format.Get(t.image.Actual()).HasDepthOrStencil() {
		usage |= gpucore.UsageDepthStencilAttachment
	} else {
		usage |= gpucore.UsageColorAttachment
	}
	ms := t.ctx.newStorage()
	err := ms.Init(&image.Desc{
		Label:    t.label + "-ms",
		Type:     gpucore.ImageType2D,
		Fallback: t.image.Fallback(),
		Extent:   t.image.LevelExtent(t.image.ToVkLevel(level)),
		Levels:   1,
		Layers:   t.image.LayerCount(),
		Samples:  samples,
		Usage:    usage,
	})
	if err != nil {
		return nil, fmt.Errorf("glvk: multisampled companion of %q: %w", t.label, err)
	}
	if err := ms.FlushAllStagedUpdates(); err != nil {
		ms.Destroy()
		return nil, err
	}
	if t.msImages == nil {
		t.msImages = make(map[msKey]*image.Storage)
	}
	t.msImages[key] = ms
	t.ctx.log.Debug("multisampled companion allocated", "label", t.label, "samples", samples, "level", level)
	return ms, nil
}

// yuvDrawImage returns the RGBA companion YUV images are rendered
// through.
func (t *Texture) yuvDrawImage() (*image.Storage, error) {
	if t.yuvDraw != nil {
		return t.yuvDraw, nil
	}
	fb := t.ctx.table.Resolve(format.RGBA8Unorm, format.AccessRenderable, t.ctx.features.Formats)
	s := t.ctx.newStorage()
	err := s.Init(&image.Desc{
		Label:      t.label + "-yuv-draw",
		Type:       t.image.Type(),
		Fallback:   fb,
		Extent:     t.image.Extent(),
		FirstLevel: t.image.FirstAllocatedLevel(),
		Levels:     t.image.LevelCount(),
		Layers:     t.image.LayerCount(),
		Samples:    1,
		Usage:      gpucore.UsageColorAttachment | gpucore.UsageSampled | gpucore.UsageTransferSrc | gpucore.UsageTransferDst,
	})
	if err != nil {
		return nil, fmt.Errorf("glvk: YUV draw companion of %q: %w", t.label, err)
	}
	t.yuvDraw = s
	return s, nil
}

// Image returns the single-sampled image the target resolves into.
func (rt *RenderTarget) Image() gpucore.ImageHandle { return rt.image.Handle() }

// DrawImage returns the image a render pass draws into.
func (rt *RenderTarget) DrawImage() gpucore.ImageHandle { return rt.drawStorage().Handle() }

func (rt *RenderTarget) drawStorage() *image.Storage {
	switch {
	case rt.ms != nil:
		return rt.ms
	case rt.yuvDraw != nil:
		return rt.yuvDraw
	}
	return rt.image
}

// View returns the attachment view of the draw image.
func (rt *RenderTarget) View() (gpucore.ViewHandle, error) {
	if rt.ms != nil || rt.yuvDraw != nil {
		return rt.companionView()
	}
	return rt.tex.views.Draw(rt.image, rt.level, rt.layer, rt.layerCount)
}

// companionView creates the attachment view of a companion image. The
// texture's view cache follows the texture image only.
func (rt *RenderTarget) companionView() (gpucore.ViewHandle, error) {
	s := rt.drawStorage()
	level := uint32(0)
	layer := rt.layer
	if rt.yuvDraw != nil {
		level = uint32(s.ToVkLevel(rt.level))
	}
	typ := gpucore.View2D
	if rt.layerCount > 1 {
		typ = gpucore.View2DArray
	}
	usage := gpucore.UsageColorAttachment
	if format.Get(s.Actual()).HasDepthOrStencil() {
		usage = gpucore.UsageDepthStencilAttachment
	}
	return rt.tex.ctx.dev.CreateView(&gpucore.ViewDesc{
		Image:  s.Handle(),
		Type:   typ,
		Format: s.Actual(),
		Range: gpucore.SubresourceRange{
			Aspect:     s.Aspects(),
			BaseLevel:  level,
			LevelCount: 1,
			BaseLayer:  layer,
			LayerCount: rt.layerCount,
		},
		Swizzle: format.Identity,
		Usage:   usage,
	})
}

// Level returns the client level.
func (rt *RenderTarget) Level() uint32 { return uint32(rt.level - rt.tex.levelOffset) }

// Layer returns the first image layer.
func (rt *RenderTarget) Layer() uint32 { return rt.layer }

// LayerCount returns the number of attached layers.
func (rt *RenderTarget) LayerCount() uint32 { return rt.layerCount }

// Samples returns the sample count rendering uses.
func (rt *RenderTarget) Samples() uint32 { return rt.samples }

// Format returns the actual format of the draw image.
func (rt *RenderTarget) Format() format.ID { return rt.drawStorage().Actual() }

// Extent returns the size of the attached level.
func (rt *RenderTarget) Extent() gpucore.Extent3D {
	return rt.image.LevelExtent(rt.image.ToVkLevel(rt.level))
}

// LoadOp flushes the updates staged for the attached layers. A
// single pending full clear of a single layer target is returned as the
// load op instead of being recorded.
func (rt *RenderTarget) LoadOp() (LoadOp, error) {
	if rt.image != rt.tex.image || !rt.image.Valid() || rt.image.Serial() != rt.serial {
		return LoadOp{}, fmt.Errorf("%w: render target of a released image", ErrNoImage)
	}
	var dc image.DeferredClear
	var deferred *image.DeferredClear
	if rt.ms == nil && rt.yuvDraw == nil {
		deferred = &dc
	}
	err := rt.image.FlushStagedUpdates(rt.level, rt.level+1, rt.layer, rt.layer+rt.layerCount, rt.tex.redefinedMask(), deferred)
	if err != nil {
		return LoadOp{}, err
	}
	if !dc.Valid {
		return LoadOp{}, nil
	}
	return LoadOp{Clear: true, Color: dc.Value.Color, Depth: dc.Value.Depth, Stencil: dc.Value.Stencil}, nil
}

// Resolve writes what was rendered into a companion image back into the
// texture image. It does nothing for targets rendered directly.
func (rt *RenderTarget) Resolve() error {
	dev := rt.tex.ctx.dev
	vk := rt.image.ToVkLevel(rt.level)
	aspect := rt.image.Aspects()
	extent := rt.Extent()

	if rt.ms != nil {
		var acc gpucore.Access
		acc.OnImageTransferRead(rt.ms.Handle(), gpucore.SubresourceRange{Aspect: aspect, LevelCount: 1, BaseLayer: rt.layer, LayerCount: rt.layerCount})
		acc.OnImageTransferWrite(rt.image.Handle(), gpucore.SubresourceRange{Aspect: aspect, BaseLevel: uint32(vk), LevelCount: 1, BaseLayer: rt.layer, LayerCount: rt.layerCount})
		cmd, err := dev.OutsideRenderPassCommandBuffer(&acc)
		if err != nil {
			return err
		}
		rt.ms.RecordReadBarrier(cmd, aspect, layout.TransferSrc, 0, 1, rt.layer, rt.layerCount)
		rt.image.RecordWriteBarrier(cmd, aspect, layout.TransferDst, vk, 1, rt.layer, rt.layerCount)
		cmd.ResolveImage(rt.ms.Handle(), gpucore.LayoutTransferSrcOptimal, rt.image.Handle(), gpucore.LayoutTransferDstOptimal, gpucore.ImageCopy{
			Aspect:     aspect,
			SrcLayer:   rt.layer,
			DstLevel:   uint32(vk),
			DstLayer:   rt.layer,
			LayerCount: rt.layerCount,
			Extent:     extent,
		})
		rt.image.RestoreContent(vk, rt.layer, rt.layerCount, aspect)
		return nil
	}

	if rt.yuvDraw != nil {
		yvk := rt.yuvDraw.ToVkLevel(rt.level)
		var acc gpucore.Access
		acc.OnImageShaderRead(rt.yuvDraw.Handle(), gpucore.SubresourceRange{Aspect: gpucore.AspectColor, BaseLevel: uint32(yvk), LevelCount: 1, BaseLayer: rt.layer, LayerCount: rt.layerCount})
		acc.OnImageDrawWrite(rt.image.Handle(), gpucore.SubresourceRange{Aspect: aspect, BaseLevel: uint32(vk), LevelCount: 1, BaseLayer: rt.layer, LayerCount: rt.layerCount})
		cmd, err := dev.OutsideRenderPassCommandBuffer(&acc)
		if err != nil {
			return err
		}
		rt.yuvDraw.RecordReadBarrier(cmd, gpucore.AspectColor, layout.FragmentShaderReadOnly, yvk, 1, rt.layer, rt.layerCount)
		rt.image.RecordWriteBarrier(cmd, aspect, layout.ColorWrite, vk, 1, rt.layer, rt.layerCount)
		yfb := rt.yuvDraw.Fallback()
		dfb := rt.image.Fallback()
		for i := range rt.layerCount {
			err := dev.Utils().CopyImageWithDraw(cmd, gpucore.DrawCopyParams{
				Src:       rt.yuvDraw.Handle(),
				SrcFormat: yfb.Actual,
				SrcLoad:   yfb.Load,
				SrcLevel:  uint32(yvk),
				SrcLayer:  rt.layer + i,
				Dst:       rt.image.Handle(),
				DstFormat: dfb.Actual,
				DstStore:  dfb.Store,
				DstLevel:  uint32(vk),
				DstLayer:  rt.layer + i,
				Extent:    extent,
			})
			if err != nil {
				return err
			}
		}
		rt.image.RestoreContent(vk, rt.layer, rt.layerCount, aspect)
	}
	return nil
}
