package glvk

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/internal/image"
)

// GetImage returns the texels of one layer of a level in format f,
// tightly packed. f of None returns the intended format of the level.
func (t *Texture) GetImage(idx Index, f format.ID) ([]byte, error) {
	if err := t.begin(); err != nil {
		return nil, err
	}
	t.checkIndex(idx)
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() {
		return nil, fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	if f == format.None {
		f = d.Format
	}
	if format.Get(f).Compressed {
		return nil, fmt.Errorf("glvk: use GetCompressedImage for %v", f)
	}
	return t.readLevel(idx, f)
}

// GetCompressedImage returns the compressed blocks of one layer of a
// level. Images stored decompressed cannot be read back this way.
func (t *Texture) GetCompressedImage(idx Index) ([]byte, error) {
	if err := t.begin(); err != nil {
		return nil, err
	}
	t.checkIndex(idx)
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() || !format.Get(d.Format).Compressed {
		return nil, fmt.Errorf("%w: no compressed image at level %d", ErrNoImage, idx.Level)
	}
	return t.readLevel(idx, d.Format)
}

func (t *Texture) readLevel(idx Index, f format.ID) ([]byte, error) {
	if err := t.ensureImageInitialized(enabledLevels); err != nil {
		return nil, err
	}
	if t.image == nil || !t.image.Valid() {
		return nil, fmt.Errorf("%w: %q has no image", ErrNoImage, t.label)
	}
	src, level := t.image, t.nativeLevel(idx.Level)
	layer, _ := t.layerRange(idx, 1)
	skip := t.redefinedMask()
	if t.levelOutsideImage(level) {
		staging, err := t.newLevelStagingImage(idx)
		if err != nil {
			return nil, err
		}
		defer staging.Destroy()
		src, level, skip = staging, 0, 0
	} else if !t.image.IsAllocated(level) {
		return nil, fmt.Errorf("%w: level %d is outside the image", ErrNoImage, idx.Level)
	}
	vk := src.ToVkLevel(level)
	if format.Get(f).Compressed && src.Actual() != f {
		return nil, fmt.Errorf("%w: %v is stored as %v", image.ErrConversionUnsupported, f, src.Actual())
	}
	return src.ReadPixels(image.ReadParams{
		Level:      vk,
		Layer:      layer,
		Box:        src.LevelBox(vk),
		Format:     f,
		SkipLevels: skip,
		Reason:     "texture image read back",
	})
}

// levelOutsideImage reports whether native level has contents the image
// cannot hold: it was redefined since allocation, or it was staged beyond
// the allocated levels.
func (t *Texture) levelOutsideImage(level image.GLLevel) bool {
	if t.image == nil || !t.image.Valid() {
		return false
	}
	if t.isLevelRedefined(level) {
		return true
	}
	return !t.image.IsAllocated(level) && t.image.HasStagedUpdatesInLevels(level, level+1)
}

// newLevelStagingImage returns a one-level image with the size and format
// of level idx, filled from the updates staged for it. The caller destroys
// it.
func (t *Texture) newLevelStagingImage(idx Index) (*image.Storage, error) {
	d := t.Desc(t.face(idx), idx.Level)
	if !d.Defined() {
		return nil, fmt.Errorf("%w: level %d", ErrNoImage, idx.Level)
	}
	extent, layers := imageExtent(t.state.Type, d.Size)
	staging, err := t.newStagingImage(t.fallbackFor(d.Format), t.image.Type(), extent, 1, layers, 0)
	if err != nil {
		return nil, err
	}
	t.image.CopyStagedUpdatesTo(t.nativeLevel(idx.Level), staging, 0)
	if err := staging.FlushAllStagedUpdates(); err != nil {
		staging.Destroy()
		return nil, err
	}
	t.ctx.log.Debug("redefined level read through staging image", "label", t.label, "level", idx.Level)
	return staging, nil
}

// ColorReadFormat returns the format GetImage reads most cheaply: the
// intended format of the base level.
func (t *Texture) ColorReadFormat() format.ID {
	return t.state.BaseDesc().Format
}

// ImplementationSizedFormat returns the format the base level is stored
// in.
func (t *Texture) ImplementationSizedFormat() format.ID {
	if t.image != nil && t.image.Valid() {
		return t.image.Actual()
	}
	d := t.state.BaseDesc()
	if !d.Defined() {
		return format.None
	}
	return t.fallbackFor(d.Format).Actual
}

// ImageCompressionRate returns the fixed-rate compression of the image.
// Images are never compressed beyond their format, so this is always
// zero.
func (t *Texture) ImageCompressionRate() int { return 0 }
