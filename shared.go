package glvk

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
)

// sharedStorage is an image storage referenced by an exporting texture
// and its siblings. It is destroyed once the exporter let go of it and no
// SharedImage or sibling references it.
type sharedStorage struct {
	storage  *image.Storage
	refs     int
	orphaned bool
}

func (s *sharedStorage) release() {
	s.refs--
	s.maybeDestroy()
}

func (s *sharedStorage) maybeDestroy() {
	if s.orphaned && s.refs == 0 && s.storage != nil {
		s.storage.ReleaseStagedUpdates()
		s.storage.Destroy()
		s.storage = nil
	}
}

// SharedImage is one level and layer of a texture image others can
// attach to with SetEGLImageTarget.
type SharedImage struct {
	store    *sharedStorage
	level    image.GLLevel
	layer    uint32
	size     gpucore.Extent3D
	format   format.ID
	released bool
}

// Size returns the size of the shared level.
func (s *SharedImage) Size() gpucore.Extent3D { return s.size }

// Format returns the intended format of the shared level.
func (s *SharedImage) Format() format.ID { return s.format }

// Valid reports whether textures can still attach to the image.
func (s *SharedImage) Valid() bool {
	return !s.released && s.store.storage != nil && s.store.storage.Valid()
}

// Release drops the reference held by s. Attached textures keep the image
// alive.
func (s *SharedImage) Release() {
	if s.released {
		return
	}
	s.released = true
	s.store.release()
}

// Export shares level idx.Level and layer idx.Layer of the image. The
// image is allocated renderable and initialized first.
func (t *Texture) Export(idx Index) (*SharedImage, error) {
	if err := t.begin(); err != nil {
		return nil, err
	}
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() {
		return nil, fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	if t.isSibling() || t.surface != nil {
		return nil, fmt.Errorf("%w: exporting a borrowed image", ErrNotImplemented)
	}
	t.state.Exported = true
	if _, err := t.ensureRenderable(); err != nil {
		return nil, err
	}
	if t.image == nil {
		t.ensureImageAllocated(t.fallbackFor(d.Format))
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
	if t.exported == nil || t.exported.storage != t.image {
		t.exported = &sharedStorage{storage: t.image}
	}
	t.exported.refs++

	layer, _ := t.layerRange(idx, 1)
	t.ctx.log.Debug("texture image exported", "label", t.label, "level", idx.Level, "layer", layer)
	return &SharedImage{
		store:  t.exported,
		level:  level,
		layer:  layer,
		size:   gpucore.Extent3D{Width: d.Size.Width, Height: d.Size.Height, Depth: 1},
		format: d.Format,
	}, nil
}

// SetEGLImageTarget makes the texture a sibling of img: a single level
// texture viewing the shared level.
func (t *Texture) SetEGLImageTarget(img *SharedImage) error {
	if err := t.begin(); err != nil {
		return err
	}
	if img == nil || !img.Valid() {
		return fmt.Errorf("%w: shared image", ErrDestroyed)
	}
	if t.state.Type != Texture2D {
		return fmt.Errorf("%w: %v sibling", ErrNotImplemented, t.state.Type)
	}
	if img.store.storage == t.image {
		return nil
	}
	t.orphanImages()
	t.releaseAndDeleteImageAndViews()

	img.store.refs++
	t.shared = img
	t.setImageHelper(img.store.storage, false, img.level, img.layer)
	t.state.clearDescs()
	t.state.setDesc(0, 0, LevelDesc{Size: img.size, Format: img.format, Samples: 1})
	t.curBase, t.curMax = t.state.BaseLevel, t.state.MaxLevel
	t.dirty |= DirtyBaseLevel | DirtyMaxLevel
	return nil
}

// pinBorrowed holds an extra reference on a borrowed image until the
// returned function runs.
func (t *Texture) pinBorrowed() func() {
	if t.shared == nil {
		return func() {}
	}
	store := t.shared.store
	store.refs++
	return store.release
}

// detachBorrowed drops the reference on a borrowed image.
func (t *Texture) detachBorrowed() {
	if t.shared != nil {
		t.shared.store.release()
		t.shared = nil
	}
	if t.surface != nil {
		t.surface.bound = nil
		t.surface = nil
	}
}

// orphanExported gives up ownership of an exported image. Siblings keep
// using it; the texture allocates a new one on its next use.
func (t *Texture) orphanExported() {
	if t.exported == nil || !t.owns || t.exported.storage != t.image {
		t.exported = nil
		return
	}
	store := t.exported
	t.ctx.log.Debug("texture image orphaned", "label", t.label, "siblings", store.refs)

	t.views.Release()
	t.releaseRenderTargets()
	t.image = nil
	t.owns = false
	t.imageSerial = 0
	t.redefined = [6]image.LevelMask{}
	t.requiresMutableStorage = false
	t.access = format.AccessSampleOnly
	t.exported = nil
	t.state.Exported = false

	store.orphaned = true
	store.maybeDestroy()
}

// orphanImages detaches the texture from images other textures see,
// before its image is redefined.
func (t *Texture) orphanImages() {
	t.orphanExported()
	if t.image != nil && !t.owns {
		t.releaseAndDeleteImageAndViews()
	}
}

// ReleaseOwnershipOfImage leaves the current image to the textures it is
// shared with.
func (t *Texture) ReleaseOwnershipOfImage() error {
	if err := t.begin(); err != nil {
		return err
	}
	t.orphanImages()
	return nil
}

// Surface is a window system image a texture can be bound to with
// BindTexImage.
type Surface struct {
	ctx       *Context
	storage   *image.Storage
	fb        format.Fallback
	size      gpucore.Extent3D
	bound     *Texture
	destroyed bool
}

// NewSurface allocates a surface image.
func (c *Context) NewSurface(size gpucore.Extent3D, id format.ID) (*Surface, error) {
	if c.closed {
		return nil, ErrContextClosed
	}
	size.Depth = 1
	fb := c.table.Resolve(id, format.AccessRenderable, c.features.Formats)
	usage := gpucore.UsageSampled | gpucore.UsageTransferSrc | gpucore.UsageTransferDst
	if format.Get(fb.Actual).HasDepthOrStencil() {
		usage |= gpucore.UsageDepthStencilAttachment
	} else {
		usage |= gpucore.UsageColorAttachment
	}
	s := c.newStorage()
	err := s.Init(&image.Desc{
		Label:    "surface",
		Type:     gpucore.ImageType2D,
		Fallback: fb,
		Extent:   size,
		Levels:   1,
		Layers:   1,
		Samples:  1,
		Usage:    usage,
	})
	if err != nil {
		return nil, fmt.Errorf("glvk: surface: %w", err)
	}
	return &Surface{ctx: c, storage: s, fb: fb, size: size}, nil
}

// Handle returns the surface image.
func (s *Surface) Handle() gpucore.ImageHandle { return s.storage.Handle() }

// Format returns the intended format.
func (s *Surface) Format() format.ID { return s.fb.Intended }

// Size returns the surface size.
func (s *Surface) Size() gpucore.Extent3D { return s.size }

// Clear fills the surface with c.
func (s *Surface) Clear(c format.Color) error {
	if s.destroyed {
		return ErrDestroyed
	}
	aspect := gpucore.AspectsOf(s.fb.Actual)
	s.storage.StageClear(0, 0, 1, aspect, image.ClearValueFor(s.fb, c))
	return s.storage.FlushAllStagedUpdates()
}

// Destroy releases the surface, unbinding the texture bound to it.
func (s *Surface) Destroy() {
	if s.destroyed {
		return
	}
	if s.bound != nil {
		_ = s.bound.ReleaseTexImage()
	}
	s.storage.ReleaseStagedUpdates()
	s.storage.Destroy()
	s.destroyed = true
}

// BindTexImage makes s the level 0 image of the texture.
func (t *Texture) BindTexImage(s *Surface) error {
	if err := t.begin(); err != nil {
		return err
	}
	if s == nil || s.destroyed {
		return fmt.Errorf("%w: surface", ErrDestroyed)
	}
	if t.state.Type != Texture2D {
		return fmt.Errorf("%w: binding a surface to a %v texture", ErrNotImplemented, t.state.Type)
	}
	if s.bound != nil && s.bound != t {
		if err := s.bound.ReleaseTexImage(); err != nil {
			return err
		}
	}
	t.orphanImages()
	t.releaseAndDeleteImageAndViews()

	t.state.clearDescs()
	t.state.setDesc(0, 0, LevelDesc{Size: s.size, Format: s.fb.Intended, Samples: 1})
	t.setImageHelper(s.storage, false, 0, 0)
	t.surface = s
	s.bound = t
	t.curBase, t.curMax = t.state.BaseLevel, t.state.MaxLevel
	return nil
}

// ReleaseTexImage undoes BindTexImage, leaving the texture without
// levels.
func (t *Texture) ReleaseTexImage() error {
	if t.destroyed {
		return ErrDestroyed
	}
	if t.surface == nil {
		return nil
	}
	t.releaseAndDeleteImageAndViews()
	t.state.clearDescs()
	return nil
}
