package view

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/cache"
	"github.com/gogpu/glvk/internal/image"
)

// DefaultLimit is the number of views a Cache keeps before evicting the
// least recently used one.
const DefaultLimit = 64

// Cache creates and caches the views of one image.
//
// Cache is not safe for concurrent use with the Storage it follows.
type Cache struct {
	dev        gpucore.Device
	views      *cache.Cache[Key, gpucore.ViewHandle]
	serial     uint64
	colorspace Colorspace
	log        *slog.Logger
}

// New returns an empty cache that destroys views through dev. A limit of
// zero selects DefaultLimit.
func New(dev gpucore.Device, limit int) *Cache {
	if limit <= 0 {
		limit = DefaultLimit
	}
	c := &Cache{dev: dev, log: slog.New(slog.DiscardHandler)}
	c.views = cache.New(limit, func(k Key, h gpucore.ViewHandle) {
		c.log.Debug("view destroyed", "class", k.Class, "handle", h)
		c.dev.DestroyView(h)
	})
	return c
}

// SetLogger sets the diagnostics logger. Nil restores silence.
func (c *Cache) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	c.log = l
}

// Bind makes c follow the image currently held by s. Views of a previous
// image are destroyed.
func (c *Cache) Bind(s *image.Storage) {
	if s.Valid() && s.Serial() == c.serial {
		return
	}
	c.views.Clear()
	c.serial = 0
	if s.Valid() {
		c.serial = s.Serial()
	}
}

// Release destroys every view.
func (c *Cache) Release() {
	c.views.Clear()
	c.serial = 0
}

// Len returns the number of live views.
func (c *Cache) Len() int { return c.views.Len() }

// Stats returns the statistics of the underlying cache.
func (c *Cache) Stats() cache.Stats { return c.views.Stats() }

// Colorspace returns the colorspace state views are created with.
func (c *Cache) Colorspace() Colorspace { return c.colorspace }

// SetColorspace updates the colorspace state. Views whose format depends
// on it are destroyed only when the state changes; the result reports
// whether it did.
func (c *Cache) SetColorspace(cs Colorspace) bool {
	if cs == c.colorspace {
		return false
	}
	n := c.views.DeleteIf(func(k Key, _ gpucore.ViewHandle) bool {
		return k.Class.colorspaceDependent()
	})
	c.log.Debug("colorspace changed", "override", cs.Override, "skipDecode", cs.SkipDecode,
		"writeLinear", cs.WriteLinear, "dropped", n)
	c.colorspace = cs
	return true
}

// Read returns the sampled view of client levels [base, top] with swizzle
// applied on top of the emulation swizzle of the stored format.
func (c *Cache) Read(s *image.Storage, base, top image.GLLevel, swizzle format.Swizzle) (gpucore.ViewHandle, error) {
	if !s.Valid() {
		return gpucore.InvalidHandle, ErrNoImage
	}
	k := c.levelsKey(s, ClassRead, base, top)
	k.Swizzle = s.Fallback().Load.Compose(swizzle)
	k.Colorspace = c.colorspace
	return c.get(s, k, c.sampleFormat(s.Actual()), gpucore.UsageSampled)
}

// Fetch returns the sampled view of [base, top] without the client
// swizzle. Cube images are viewed as 2D arrays.
func (c *Cache) Fetch(s *image.Storage, base, top image.GLLevel) (gpucore.ViewHandle, error) {
	if !s.Valid() {
		return gpucore.InvalidHandle, ErrNoImage
	}
	k := c.levelsKey(s, ClassFetch, base, top)
	k.Swizzle = s.Fallback().Load
	k.Colorspace = c.colorspace
	return c.get(s, k, c.sampleFormat(s.Actual()), gpucore.UsageSampled)
}

// CopySrc returns a linear view of every layer of one level.
func (c *Cache) CopySrc(s *image.Storage, level image.GLLevel) (gpucore.ViewHandle, error) {
	if !s.Valid() {
		return gpucore.InvalidHandle, ErrNoImage
	}
	k := c.levelsKey(s, ClassCopySrc, level, level)
	return c.get(s, k, linear(s.Actual()), gpucore.UsageSampled)
}

// CopyDst returns a linear render target view of one level and layer.
func (c *Cache) CopyDst(s *image.Storage, level image.GLLevel, layer uint32) (gpucore.ViewHandle, error) {
	if !s.Valid() {
		return gpucore.InvalidHandle, ErrNoImage
	}
	k := c.layerKey(s, ClassCopyDst, level, layer, 1)
	return c.get(s, k, linear(s.Actual()), gpucore.UsageColorAttachment)
}

// Storage returns the storage image view of every layer of one level.
// Storage views never use an sRGB format.
func (c *Cache) Storage(s *image.Storage, level image.GLLevel) (gpucore.ViewHandle, error) {
	if !s.Valid() {
		return gpucore.InvalidHandle, ErrNoImage
	}
	k := c.levelsKey(s, ClassStorage, level, level)
	return c.get(s, k, linear(s.Actual()), gpucore.UsageStorage)
}

// Draw returns the render target view of layerCount layers of one level.
func (c *Cache) Draw(s *image.Storage, level image.GLLevel, layer, layerCount uint32) (gpucore.ViewHandle, error) {
	if !s.Valid() {
		return gpucore.InvalidHandle, ErrNoImage
	}
	k := c.layerKey(s, ClassDraw, level, layer, max(layerCount, 1))
	k.Colorspace = c.colorspace
	f := s.Actual()
	if c.colorspace.WriteLinear {
		f = linear(f)
	}
	usage := gpucore.UsageColorAttachment
	if format.Get(f).HasDepthOrStencil() {
		usage = gpucore.UsageDepthStencilAttachment
	}
	return c.get(s, k, f, usage)
}

// DepthOnly returns a sampled view of the depth aspect of [base, top].
func (c *Cache) DepthOnly(s *image.Storage, base, top image.GLLevel) (gpucore.ViewHandle, error) {
	return c.aspectOnly(s, ClassDepthOnly, gpucore.AspectDepth, base, top)
}

// StencilOnly returns a sampled view of the stencil aspect of [base, top].
func (c *Cache) StencilOnly(s *image.Storage, base, top image.GLLevel) (gpucore.ViewHandle, error) {
	return c.aspectOnly(s, ClassStencilOnly, gpucore.AspectStencil, base, top)
}

func (c *Cache) aspectOnly(s *image.Storage, class Class, aspect gpucore.Aspect, base, top image.GLLevel) (gpucore.ViewHandle, error) {
	if !s.Valid() {
		return gpucore.InvalidHandle, ErrNoImage
	}
	if s.Aspects()&aspect == 0 {
		return gpucore.InvalidHandle, fmt.Errorf("%w: %s view of %s", ErrNoAspect, class, s.Actual())
	}
	k := c.levelsKey(s, class, base, top)
	k.Aspect = aspect
	return c.get(s, k, s.Actual(), gpucore.UsageSampled)
}

// levelsKey clamps client levels [base, top] to the allocated levels and
// covers every layer.
func (c *Cache) levelsKey(s *image.Storage, class Class, base, top image.GLLevel) Key {
	first, last := s.FirstAllocatedLevel(), s.LastAllocatedLevel()
	lo := min(max(base, first), last)
	hi := min(max(top, lo), last)
	return Key{
		Class:      class,
		Type:       viewType(s, class, s.LayerCount()),
		BaseLevel:  uint32(s.ToVkLevel(lo)),
		LevelCount: uint32(hi-lo) + 1,
		LayerCount: s.LayerCount(),
		Swizzle:    format.Identity,
		Aspect:     s.Aspects(),
		LevelsHash: LevelsHash(uint32(base), uint32(top)),
	}
}

func (c *Cache) layerKey(s *image.Storage, class Class, level image.GLLevel, layer, layerCount uint32) Key {
	return Key{
		Class:      class,
		Type:       viewType(s, class, layerCount),
		BaseLevel:  uint32(s.ToVkLevel(level)),
		LevelCount: 1,
		BaseLayer:  layer,
		LayerCount: layerCount,
		Swizzle:    format.Identity,
		Aspect:     s.Aspects(),
		LevelsHash: LevelsHash(uint32(level), uint32(level)),
	}
}

func (c *Cache) get(s *image.Storage, k Key, f format.ID, usage gpucore.ImageUsage) (gpucore.ViewHandle, error) {
	if s.Usage()&usage == 0 {
		return gpucore.InvalidHandle, fmt.Errorf("%w: %s view needs usage %#x", ErrMissingUsage, k.Class, usage)
	}
	c.Bind(s)
	return c.views.GetOrCreate(k, func() (gpucore.ViewHandle, error) {
		h, err := c.dev.CreateView(&gpucore.ViewDesc{
			Image:   s.Handle(),
			Type:    k.Type,
			Format:  f,
			Swizzle: k.Swizzle,
			Range: gpucore.SubresourceRange{
				Aspect:     k.Aspect,
				BaseLevel:  k.BaseLevel,
				LevelCount: k.LevelCount,
				BaseLayer:  k.BaseLayer,
				LayerCount: k.LayerCount,
			},
			Usage: usage,
		})
		if err != nil {
			return gpucore.InvalidHandle, fmt.Errorf("view: create %s view: %w", k.Class, err)
		}
		c.log.Debug("view created", "class", k.Class, "handle", h, "format", f,
			"level", k.BaseLevel, "levels", k.LevelCount, "layer", k.BaseLayer, "layers", k.LayerCount)
		return h, nil
	})
}

// sampleFormat applies the colorspace state to a sampled view format.
func (c *Cache) sampleFormat(id format.ID) format.ID {
	if c.colorspace.SkipDecode {
		return linear(id)
	}
	return format.ApplyColorspace(id, c.colorspace.Override)
}

func linear(id format.ID) format.ID {
	return format.ApplyColorspace(id, format.ColorspaceLinear)
}

func viewType(s *image.Storage, class Class, layerCount uint32) gpucore.ViewType {
	if s.Type() == gpucore.ImageType3D {
		if class == ClassDraw || class == ClassCopyDst {
			return gpucore.View2D
		}
		return gpucore.View3D
	}
	sampled := class == ClassRead || class == ClassDepthOnly || class == ClassStencilOnly
	if sampled && s.Flags()&gpucore.CreateCubeCompatible != 0 && layerCount%6 == 0 {
		if layerCount == 6 {
			return gpucore.ViewCube
		}
		return gpucore.ViewCubeArray
	}
	if layerCount > 1 {
		return gpucore.View2DArray
	}
	return gpucore.View2D
}
