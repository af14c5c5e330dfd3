package glvk

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
	"github.com/gogpu/glvk/internal/view"
)

// mipLevels selects how many levels an image is allocated with.
type mipLevels uint8

const (
	// enabledLevels allocates the levels the current state samples.
	enabledLevels mipLevels = iota
	// fullMipChain allocates every level down to 1x1 from the base.
	fullMipChain
)

// applyImageUpdate is when a staged update reaches the image.
type applyImageUpdate uint8

const (
	// applyDefer leaves the update staged until the image is used.
	applyDefer applyImageUpdate = iota
	// applyImmediately flushes the update before returning.
	applyImmediately
	// applyImmediatelyInUnlockedTailCall flushes the update once the
	// caller is done with the API.
	applyImmediatelyInUnlockedTailCall
)

// Texture is the storage manager of one client texture: it decides when
// the image is allocated, stages and flushes updates, and recreates the
// image when its parameters change.
//
// A Texture belongs to its Context and must not be used concurrently.
type Texture struct {
	ctx   *Context
	label string

	state State
	dirty DirtyBits

	// image is nil until the first specification. It is owned unless the
	// texture is the target of a SharedImage or a Surface.
	image       *image.Storage
	owns        bool
	imageSerial uint64
	views       *view.Cache

	access                 format.Access
	usage                  gpucore.ImageUsage
	flags                  gpucore.ImageCreateFlags
	requiresMutableStorage bool

	// redefined holds, per face, the levels whose new definition is
	// incompatible with the allocated image.
	redefined [6]image.LevelMask

	// curBase and curMax are the client levels the image was allocated
	// for.
	curBase uint32
	curMax  uint32

	// levelOffset and layerOffset place client level 0 and layer 0 of a
	// sibling in the shared image.
	levelOffset image.GLLevel
	layerOffset uint32

	shared   *SharedImage
	surface  *Surface
	exported *sharedStorage

	renderTargets map[rtKey]*RenderTarget
	msImages      map[msKey]*image.Storage
	yuvDraw       *image.Storage
	// msrttBound is set once the texture is attached with implicit
	// multisampling.
	msrttBound bool

	incomplete bool
	destroyed  bool
}

func newTexture(c *Context, typ TextureType, label string) *Texture {
	t := &Texture{
		ctx:    c,
		label:  label,
		state:  newState(typ),
		access: format.AccessSampleOnly,
		views:  view.New(c.dev, c.opts.viewCacheLimit),
		curMax: defaultMaxLevel,
	}
	t.views.SetLogger(c.log)
	return t
}

// begin guards every public operation.
func (t *Texture) begin() error {
	if t.destroyed {
		return ErrDestroyed
	}
	if t.ctx.closed {
		return ErrContextClosed
	}
	return t.ctx.RunTailCalls()
}

// Label returns the debug label.
func (t *Texture) Label() string { return t.label }

// Type returns the texture type.
func (t *Texture) Type() TextureType { return t.state.Type }

// State returns a copy of the client state.
func (t *Texture) State() State { return t.state }

// Dirty returns the state changes not yet reconciled by SyncState.
func (t *Texture) Dirty() DirtyBits { return t.dirty }

// Desc returns the definition of one level. face is ignored for
// non-cube types.
func (t *Texture) Desc(face, level uint32) LevelDesc {
	if t.state.Type != TextureCube {
		face = 0
	}
	return t.state.Desc(face, level)
}

// Valid reports whether the texture has an allocated image.
func (t *Texture) Valid() bool { return t.image != nil && t.image.Valid() }

// Handle returns the device image, or gpucore.InvalidHandle.
func (t *Texture) Handle() gpucore.ImageHandle {
	if t.image == nil {
		return gpucore.InvalidHandle
	}
	return t.image.Handle()
}

// SampledView returns the view the enabled levels are sampled through,
// with the client swizzle applied. Call SyncState for the draw first.
func (t *Texture) SampledView() (gpucore.ViewHandle, error) {
	base, top, err := t.enabledViewLevels()
	if err != nil {
		return gpucore.InvalidHandle, err
	}
	return t.views.Read(t.image, base, top, t.state.Swizzle)
}

// FetchView returns the view texel fetches of the enabled levels use.
func (t *Texture) FetchView() (gpucore.ViewHandle, error) {
	base, top, err := t.enabledViewLevels()
	if err != nil {
		return gpucore.InvalidHandle, err
	}
	return t.views.Fetch(t.image, base, top)
}

// DepthView returns the sampled view of the depth aspect.
func (t *Texture) DepthView() (gpucore.ViewHandle, error) {
	base, top, err := t.enabledViewLevels()
	if err != nil {
		return gpucore.InvalidHandle, err
	}
	return t.views.DepthOnly(t.image, base, top)
}

// StencilView returns the sampled view of the stencil aspect.
func (t *Texture) StencilView() (gpucore.ViewHandle, error) {
	base, top, err := t.enabledViewLevels()
	if err != nil {
		return gpucore.InvalidHandle, err
	}
	return t.views.StencilOnly(t.image, base, top)
}

func (t *Texture) enabledViewLevels() (base, top image.GLLevel, err error) {
	if !t.Valid() {
		return 0, 0, fmt.Errorf("%w: view of texture %q", ErrNoImage, t.label)
	}
	return t.nativeLevel(t.state.EffectiveBaseLevel()), t.nativeLevel(t.state.EffectiveMaxLevel()), nil
}

// OwnsImage reports whether the texture allocated its image.
func (t *Texture) OwnsImage() bool { return t.image != nil && t.owns }

// IntendedFormat returns the client format of the image.
func (t *Texture) IntendedFormat() format.ID {
	if t.image != nil && t.image.Valid() {
		return t.image.Intended()
	}
	return t.state.BaseDesc().Format
}

// ActualFormat returns the storage format of the image, or the format an
// image would currently be allocated with.
func (t *Texture) ActualFormat() format.ID {
	if t.image != nil && t.image.Valid() {
		return t.image.Actual()
	}
	f := t.state.BaseDesc().Format
	if f == format.None {
		return format.None
	}
	return t.fallbackFor(f).Actual
}

// Usage returns the usage the image was or will be created with.
func (t *Texture) Usage() gpucore.ImageUsage { return t.usage }

// Flags returns the create flags the image was or will be created with.
func (t *Texture) Flags() gpucore.ImageCreateFlags { return t.flags }

// RequiresRenderable reports whether the texture needs an attachable
// storage format.
func (t *Texture) RequiresRenderable() bool { return t.access == format.AccessRenderable }

// LevelCount returns the number of allocated levels.
func (t *Texture) LevelCount() uint32 {
	if t.image == nil || !t.image.Valid() {
		return 0
	}
	return t.image.LevelCount()
}

// FirstAllocatedLevel returns the client level stored at native level 0.
func (t *Texture) FirstAllocatedLevel() uint32 {
	if t.image == nil {
		return 0
	}
	return uint32(t.image.FirstAllocatedLevel() - t.levelOffset)
}

// RedefinedLevels returns the levels of face awaiting respecification.
func (t *Texture) RedefinedLevels(face uint32) image.LevelMask { return t.redefined[face] }

// HasStagedUpdates reports whether any update is waiting for the image.
func (t *Texture) HasStagedUpdates() bool {
	return t.image != nil && t.image.LevelsWithStagedUpdates().Any()
}

// StagedUpdateCount returns the number of updates staged for a client
// level.
func (t *Texture) StagedUpdateCount(level uint32) int {
	if t.image == nil {
		return 0
	}
	return len(t.image.StagedUpdates(t.nativeLevel(level)))
}

// SetBaseLevel sets the base level.
func (t *Texture) SetBaseLevel(l uint32) {
	if t.state.BaseLevel != l {
		t.state.BaseLevel = l
		t.dirty |= DirtyBaseLevel
	}
}

// SetMaxLevel sets the max level.
func (t *Texture) SetMaxLevel(l uint32) {
	if t.state.MaxLevel != l {
		t.state.MaxLevel = l
		t.dirty |= DirtyMaxLevel
	}
}

// SetSwizzle sets the sampling swizzle.
func (t *Texture) SetSwizzle(s format.Swizzle) {
	if t.state.Swizzle != s {
		t.state.Swizzle = s
		t.dirty |= DirtySwizzle
	}
}

// SetSRGBOverride reinterprets the image as sRGB or linear for sampling.
func (t *Texture) SetSRGBOverride(o format.ColorspaceOverride) {
	if t.state.SRGBOverride != o {
		t.state.SRGBOverride = o
		t.dirty |= DirtySRGBOverride
	}
}

// SetSRGBDecode controls whether sampling decodes sRGB texels.
func (t *Texture) SetSRGBDecode(decode bool) {
	if t.state.SkipSRGBDecode == decode {
		t.state.SkipSRGBDecode = !decode
		t.dirty |= DirtySRGBDecode
	}
}

// SetMipmapFilter sets whether the minification filter uses mipmaps.
func (t *Texture) SetMipmapFilter(on bool) {
	if t.state.MipmapFilter != on {
		t.state.MipmapFilter = on
		t.dirty |= DirtyMinFilter
	}
}

// SetGenerateMipmapHint records that the client intends to generate
// mipmaps, so updates are applied at once instead of at the end of the
// call.
func (t *Texture) SetGenerateMipmapHint(on bool) { t.state.GenerateMipmapHint = on }

// SetBoundAsAttachment records that the texture is attached to a
// framebuffer.
func (t *Texture) SetBoundAsAttachment() {
	if !t.state.BoundAsAttachment {
		t.state.BoundAsAttachment = true
		t.dirty |= DirtyBoundAsAttachment
	}
}

// SetBoundAsStorage records that the texture is bound as a storage image.
func (t *Texture) SetBoundAsStorage() {
	if !t.state.BoundAsStorage {
		t.state.BoundAsStorage = true
		t.dirty |= DirtyBoundAsStorage
	}
}

// SetProtected marks the texture as holding protected content. It only
// affects images allocated afterwards.
func (t *Texture) SetProtected(on bool) { t.state.Protected = on }

// fallbackFor resolves id under the current access requirement.
func (t *Texture) fallbackFor(id format.ID) format.Fallback {
	return t.ctx.table.Resolve(id, t.access, t.ctx.features.Formats)
}

// nativeLevel maps a client level to a level of the image.
func (t *Texture) nativeLevel(level uint32) image.GLLevel {
	return image.GLLevel(level) + t.levelOffset
}

// isSibling reports whether the image is borrowed from a SharedImage.
func (t *Texture) isSibling() bool { return t.shared != nil }

// viewLevelCount is the number of image levels visible to the texture.
func (t *Texture) viewLevelCount() uint32 {
	if t.isSibling() {
		return 1
	}
	return t.image.LevelCount()
}

// viewLayerCount is the number of image layers visible to the texture.
func (t *Texture) viewLayerCount() uint32 {
	if t.isSibling() || t.state.Type == Texture3D {
		return 1
	}
	return t.image.LayerCount()
}

// face returns the face slot of idx in the level descriptions.
func (t *Texture) face(idx Index) uint32 {
	if t.state.Type == TextureCube {
		return idx.Layer
	}
	return 0
}

// layerRange returns the image layers idx addresses. For arrays a zero
// LayerCount selects every layer of the client size at that level.
func (t *Texture) layerRange(idx Index, arrayLayers uint32) (layer, count uint32) {
	switch {
	case t.state.Type == Texture3D:
		return t.layerOffset, 1
	case t.state.Type == TextureCube:
		return idx.Layer + t.layerOffset, 1
	case t.state.Type.IsArray():
		if idx.LayerCount == 0 {
			return idx.Layer + t.layerOffset, max(arrayLayers-idx.Layer, 1)
		}
		return idx.Layer + t.layerOffset, idx.LayerCount
	}
	return t.layerOffset, 1
}

// nativeRegion maps a client box of one level to image layers and an
// image box. Array boxes carry layers in Z and Depth.
func (t *Texture) nativeRegion(idx Index, box gpucore.Box) (layer, count uint32, out gpucore.Box) {
	out = box
	switch {
	case t.state.Type == Texture3D:
		return t.layerOffset, 1, out
	case t.state.Type.IsArray():
		layer = uint32(box.Offset.Z) + t.layerOffset
		count = max(box.Extent.Depth, 1)
		out.Offset.Z, out.Extent.Depth = 0, 1
		return layer, count, out
	case t.state.Type == TextureCube:
		out.Offset.Z, out.Extent.Depth = 0, 1
		return idx.Layer + t.layerOffset, 1, out
	}
	out.Offset.Z, out.Extent.Depth = 0, 1
	return t.layerOffset, 1, out
}

// redefinedMask returns the levels redefined in any face.
func (t *Texture) redefinedMask() image.LevelMask {
	var m image.LevelMask
	for _, f := range t.redefined {
		m |= f
	}
	return m
}

// isLevelRedefined reports whether native level is redefined in any face.
func (t *Texture) isLevelRedefined(level image.GLLevel) bool {
	return t.redefinedMask().Has(level)
}

// refreshViews drops views of the current image.
func (t *Texture) refreshViews() {
	t.views.Release()
	if t.image != nil {
		t.views.Bind(t.image)
	}
}

// releaseRenderTargets drops the render targets and companion images.
func (t *Texture) releaseRenderTargets() {
	t.renderTargets = nil
	for k, ms := range t.msImages {
		ms.Destroy()
		delete(t.msImages, k)
	}
	if t.yuvDraw != nil {
		t.yuvDraw.Destroy()
		t.yuvDraw = nil
	}
}

// releaseImage drops the image. An owned storage keeps its staged
// updates so a new image can be allocated into it; a borrowed one is
// detached.
func (t *Texture) releaseImage() {
	t.views.Release()
	t.releaseRenderTargets()
	if t.image != nil {
		if t.owns {
			t.image.Release()
		} else {
			t.detachBorrowed()
			t.image = nil
		}
	}
	t.imageSerial = 0
	t.redefined = [6]image.LevelMask{}
}

// releaseAndDeleteImageAndViews drops the image and everything staged
// for it.
func (t *Texture) releaseAndDeleteImageAndViews() {
	if t.image != nil {
		if t.owns {
			t.image.ReleaseStagedUpdates()
		}
		owned := t.owns
		img := t.image
		t.releaseImage()
		if owned {
			img.Destroy()
		}
		t.image = nil
		t.requiresMutableStorage = false
		t.access = format.AccessSampleOnly
		t.flags = 0
		t.usage = 0
	}
	t.levelOffset, t.layerOffset = 0, 0
	t.redefined = [6]image.LevelMask{}
}

// setImageHelper installs s as the image of the texture.
func (t *Texture) setImageHelper(s *image.Storage, owns bool, levelOffset image.GLLevel, layerOffset uint32) {
	t.image = s
	t.owns = owns
	t.levelOffset = levelOffset
	t.layerOffset = layerOffset
	t.imageSerial = s.Serial()
	if !owns {
		if !s.IsExternal() {
			t.access = format.AccessRenderable
		}
		t.usage = s.Usage()
		t.flags = s.Flags()
		t.requiresMutableStorage = t.flags&gpucore.CreateMutableFormat != 0
	}
	t.refreshViews()
}

// Destroy releases the image and views. Images shared with other
// textures stay alive until the last of them lets go.
func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.orphanImages()
	t.releaseAndDeleteImageAndViews()
	t.views.Release()
	t.destroyed = true
	t.ctx.log.Debug("texture destroyed", "label", t.label)
}
