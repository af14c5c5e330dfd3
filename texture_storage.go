package glvk

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
	"github.com/gogpu/glvk/internal/layout"
)

// maxLevelsFor returns the length of a full mip chain of size.
func maxLevelsFor(typ TextureType, size gpucore.Extent3D) uint32 {
	dim := max(size.Width, size.Height)
	if typ == Texture3D {
		dim = max(dim, size.Depth)
	}
	if dim == 0 {
		return 0
	}
	return min(uint32(bits.Len32(dim)), image.MaxLevels)
}

// setImmutableDescs defines levels [0, levels) from size, halving at
// each level.
func (t *Texture) setImmutableDescs(levels uint32, f format.ID, size gpucore.Extent3D, samples uint32) {
	t.state.clearDescs()
	for l := range levels {
		d := LevelDesc{Format: f, Samples: samples, Size: gpucore.Extent3D{
			Width:  max(size.Width>>l, 1),
			Height: max(size.Height>>l, 1),
			Depth:  size.Depth,
		}}
		if t.state.Type == Texture3D {
			d.Size.Depth = max(size.Depth>>l, 1)
		}
		for face := range uint32(t.state.Type.faces()) {
			t.state.setDesc(face, l, d)
		}
	}
	t.state.Immutable = true
	t.state.ImmutableLevels = levels
	t.curBase, t.curMax = t.state.BaseLevel, t.state.MaxLevel
}

// allocateStorage allocates the image of an immutable texture.
func (t *Texture) allocateStorage(m mipLevels) error {
	if t.image != nil && !t.owns {
		t.releaseAndDeleteImageAndViews()
	} else if t.image != nil {
		t.image.ReleaseStagedUpdates()
	}
	fb := t.fallbackFor(t.state.Desc(0, 0).Format)
	t.ensureImageAllocated(fb)
	if t.image.Valid() {
		t.releaseImage()
	}
	return t.initImage(fb, m)
}

// SetStorage allocates levels immutable levels of format f starting at
// size.
func (t *Texture) SetStorage(levels uint32, f format.ID, size gpucore.Extent3D) error {
	if err := t.begin(); err != nil {
		return err
	}
	if t.state.Immutable {
		return ErrImmutable
	}
	if t.state.Type.IsMultisample() {
		return fmt.Errorf("glvk: SetStorage on a %v texture", t.state.Type)
	}
	size = t.normalizeSize(size)
	if levels == 0 || levels > maxLevelsFor(t.state.Type, size) {
		return fmt.Errorf("glvk: %d levels for size %+v", levels, size)
	}
	t.orphanImages()
	t.setImmutableDescs(levels, f, size, 1)
	return t.allocateStorage(fullMipChain)
}

// SetStorageMultisample allocates the immutable image of a multisample
// texture.
func (t *Texture) SetStorageMultisample(samples uint32, f format.ID, size gpucore.Extent3D) error {
	if err := t.begin(); err != nil {
		return err
	}
	if t.state.Immutable {
		return ErrImmutable
	}
	if !t.state.Type.IsMultisample() {
		return fmt.Errorf("glvk: SetStorageMultisample on a %v texture", t.state.Type)
	}
	if samples == 0 || samples > t.ctx.features.MaxSamples || samples&(samples-1) != 0 {
		return fmt.Errorf("%w: %d samples", gpucore.ErrUnsupported, samples)
	}
	size = t.normalizeSize(size)
	t.orphanImages()
	t.setImmutableDescs(1, f, size, samples)
	return t.allocateStorage(enabledLevels)
}

// SetStorageExternalMemory defines the texture over imported memory. A
// zero usage selects the usage SetStorage would pick.
func (t *Texture) SetStorageExternalMemory(levels uint32, f format.ID, size gpucore.Extent3D, mem gpucore.ExternalMemory, usage gpucore.ImageUsage, flags gpucore.ImageCreateFlags) error {
	if err := t.begin(); err != nil {
		return err
	}
	if t.state.Immutable {
		return ErrImmutable
	}
	size = t.normalizeSize(size)
	if levels == 0 || levels > maxLevelsFor(t.state.Type, size) {
		return fmt.Errorf("glvk: %d levels for size %+v", levels, size)
	}
	t.orphanImages()
	t.releaseAndDeleteImageAndViews()

	if usage&(gpucore.UsageColorAttachment|gpucore.UsageDepthStencilAttachment) != 0 {
		t.access = format.AccessRenderable
	}
	fb := t.fallbackFor(f)
	t.image = t.ctx.newStorage()
	t.owns = true
	t.initImageUsageFlags(fb.Actual)
	if usage != 0 {
		t.usage = usage
	}
	t.flags |= flags | minimalCreateFlags(t.state.Type, t.usage)

	t.state.ExternalMemory = true
	t.setImmutableDescs(levels, f, size, 1)
	extent, layers := imageExtent(t.state.Type, size)
	err := t.image.InitExternal(&image.Desc{
		Label:    t.label,
		Type:     t.state.Type.imageType(),
		Fallback: fb,
		Extent:   extent,
		Levels:   levels,
		Layers:   layers,
		Samples:  1,
		Usage:    t.usage,
		Flags:    t.flags,
	}, mem, layout.Undefined)
	if err != nil {
		return err
	}
	t.imageSerial = t.image.Serial()
	t.requiresMutableStorage = t.flags&gpucore.CreateMutableFormat != 0
	t.refreshViews()
	t.ctx.log.Info("texture imported external memory", "label", t.label, "format", f,
		"foreign", mem.Foreign, "levels", levels)
	return nil
}

// ExternalLayout is the layout an image is handed over in.
type ExternalLayout uint8

// External layouts.
const (
	ExternalLayoutUndefined ExternalLayout = iota
	ExternalLayoutShaderReadOnly
	ExternalLayoutShaderReadWrite
	ExternalLayoutColorAttachment
	ExternalLayoutDepthStencilAttachment
	ExternalLayoutTransferSrc
	ExternalLayoutTransferDst
)

var externalLayouts = [...]layout.ImageLayout{
	ExternalLayoutUndefined:              layout.Undefined,
	ExternalLayoutShaderReadOnly:         layout.ExternalShadersReadOnly,
	ExternalLayoutShaderReadWrite:        layout.ExternalShadersWrite,
	ExternalLayoutColorAttachment:        layout.ColorWrite,
	ExternalLayoutDepthStencilAttachment: layout.DepthStencilWrite,
	ExternalLayoutTransferSrc:            layout.TransferSrc,
	ExternalLayoutTransferDst:            layout.TransferDst,
}

func (l ExternalLayout) internal() (layout.ImageLayout, error) {
	if int(l) >= len(externalLayouts) {
		return 0, fmt.Errorf("glvk: unknown external layout %d", l)
	}
	return externalLayouts[l], nil
}

// externalImage returns the image of a texture backed by external memory.
func (t *Texture) externalImage() (*image.Storage, error) {
	if err := t.begin(); err != nil {
		return nil, err
	}
	if t.image == nil || !t.image.Valid() || !t.image.IsExternal() {
		return nil, fmt.Errorf("%w: texture has no external image", ErrNoImage)
	}
	return t.image, nil
}

// AcquireFromExternal takes the image back from the external or foreign
// queue that owns it, transitioning it to l.
func (t *Texture) AcquireFromExternal(l ExternalLayout) error {
	img, err := t.externalImage()
	if err != nil {
		return err
	}
	if !img.QueueFamily().IsExternal() {
		return fmt.Errorf("glvk: %q is not owned by an external queue", t.label)
	}
	to, err := l.internal()
	if err != nil {
		return err
	}
	cmd, err := t.ctx.dev.OutsideRenderPassCommandBuffer(&gpucore.Access{})
	if err != nil {
		return err
	}
	img.AcquireFromExternal(cmd, to)
	return nil
}

// ReleaseToExternal hands the image to the external queue, or the foreign
// one when foreign is set, in layout l. Staged updates are flushed first.
func (t *Texture) ReleaseToExternal(foreign bool, l ExternalLayout) error {
	img, err := t.externalImage()
	if err != nil {
		return err
	}
	if img.IsReleasedToExternal() {
		return fmt.Errorf("glvk: %q is already released", t.label)
	}
	to, err := l.internal()
	if err != nil {
		return err
	}
	if err := t.ensureImageInitialized(enabledLevels); err != nil {
		return err
	}
	qf := gpucore.QueueFamilyExternal
	if foreign {
		qf = gpucore.QueueFamilyForeign
	}
	cmd, err := t.ctx.dev.OutsideRenderPassCommandBuffer(&gpucore.Access{})
	if err != nil {
		return err
	}
	img.ReleaseToExternal(cmd, qf, to)
	return nil
}
