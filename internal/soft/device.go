package soft

import (
	"errors"
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// image is a host-memory image. Each level holds layers*samples copies of
// the level, tightly packed in the image format.
type image struct {
	desc   gpucore.ImageDesc
	levels [][]byte
	layout gpucore.NativeLayout
	// layoutUnknown is set for imported images until the first barrier.
	layoutUnknown bool
}

func (img *image) info() *format.Info { return format.Get(img.desc.Format) }

func (img *image) extent(level uint32) gpucore.Extent3D {
	return gpucore.LevelExtent(img.desc.Extent, level)
}

// layerSize is the byte size of one layer (all depth slices) of level.
func (img *image) layerSize(level uint32) int {
	e := img.extent(level)
	return img.info().DataSize(int(e.Width), int(e.Height), int(e.Depth))
}

// texelOffset returns the byte offset of texel (x, y, z) of layer and
// sample in level.
func (img *image) texelOffset(level, layer, sample uint32, x, y, z int) int {
	info := img.info()
	e := img.extent(level)
	pitch := info.RowPitch(int(e.Width))
	slice := info.DataSize(int(e.Width), int(e.Height), 1)
	base := int(layer*img.desc.Samples+sample) * img.layerSize(level)
	return base + z*slice + (y/info.BlockH)*pitch + (x/info.BlockW)*info.PixelBytes
}

type buffer struct {
	desc gpucore.BufferDesc
	data []byte
	// gpuWritten is set while a GPU write to the buffer is unfinished.
	gpuWritten bool
}

// Device is a gpucore.Device that executes every command on the CPU as
// it is recorded. It keeps a log of recorded commands and validates the
// layouts commands are recorded with.
//
// Device is not safe for concurrent use.
type Device struct {
	features gpucore.Features

	next    uint64
	images  map[gpucore.ImageHandle]*image
	views   map[gpucore.ViewHandle]gpucore.ViewDesc
	buffers map[gpucore.BufferHandle]*buffer

	// inUse holds resources referenced by work that has not finished.
	inUseImages  map[gpucore.ImageHandle]bool
	inUseBuffers map[gpucore.BufferHandle]bool

	log    []Command
	errs   []error
	failAt int

	Flushes        int
	Finishes       int
	RenderPassEnds int
}

var _ gpucore.Device = (*Device)(nil)

// New returns a software device with the given features.
func New(f gpucore.Features) *Device {
	return &Device{
		features:     f,
		images:       make(map[gpucore.ImageHandle]*image),
		views:        make(map[gpucore.ViewHandle]gpucore.ViewDesc),
		buffers:      make(map[gpucore.BufferHandle]*buffer),
		inUseImages:  make(map[gpucore.ImageHandle]bool),
		inUseBuffers: make(map[gpucore.BufferHandle]bool),
	}
}

// NewDefault returns a software device with gpucore.DefaultFeatures.
func NewDefault() *Device { return New(gpucore.DefaultFeatures()) }

// Features implements gpucore.Device.
func (d *Device) Features() gpucore.Features { return d.features }

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

// FailAllocations makes the n-th next image or buffer allocation fail
// with gpucore.ErrOutOfMemory. Zero disables failures.
func (d *Device) FailAllocations(n int) { d.failAt = n }

func (d *Device) allocFails() bool {
	if d.failAt == 0 {
		return false
	}
	d.failAt--
	return d.failAt == 0
}

// CreateImage implements gpucore.Device.
func (d *Device) CreateImage(desc *gpucore.ImageDesc) (gpucore.ImageHandle, error) {
	if d.allocFails() {
		return gpucore.InvalidHandle, fmt.Errorf("soft: image %q: %w", desc.Label, gpucore.ErrOutOfMemory)
	}
	if !desc.Format.Valid() {
		return gpucore.InvalidHandle, fmt.Errorf("%w: image format %v", ErrInvalidDesc, desc.Format)
	}
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 || desc.Levels == 0 {
		return gpucore.InvalidHandle, fmt.Errorf("%w: image %q size %dx%d levels %d",
			ErrInvalidDesc, desc.Label, desc.Extent.Width, desc.Extent.Height, desc.Levels)
	}
	img := &image{desc: *desc, layout: gpucore.LayoutUndefined}
	img.desc.Extent.Depth = max(img.desc.Extent.Depth, 1)
	img.desc.Layers = max(img.desc.Layers, 1)
	img.desc.Samples = max(img.desc.Samples, 1)
	img.levels = make([][]byte, desc.Levels)
	for l := range img.levels {
		img.levels[l] = make([]byte, img.layerSize(uint32(l))*int(img.desc.Layers*img.desc.Samples))
	}
	h := gpucore.ImageHandle(d.handle())
	d.images[h] = img
	return h, nil
}

// ImportImage implements gpucore.Device. Imported memory reads as zero.
func (d *Device) ImportImage(desc *gpucore.ImageDesc, mem gpucore.ExternalMemory) (gpucore.ImageHandle, error) {
	h, err := d.CreateImage(desc)
	if err != nil {
		return h, err
	}
	if mem.Foreign {
		d.images[h].layout = gpucore.LayoutGeneral
	} else {
		d.images[h].layoutUnknown = true
	}
	return h, nil
}

// DestroyImage implements gpucore.Device.
func (d *Device) DestroyImage(h gpucore.ImageHandle) {
	if _, ok := d.images[h]; !ok {
		d.fail(fmt.Errorf("%w: destroy image %d", gpucore.ErrInvalidHandle, h))
		return
	}
	delete(d.images, h)
	delete(d.inUseImages, h)
}

// CreateView implements gpucore.Device.
func (d *Device) CreateView(desc *gpucore.ViewDesc) (gpucore.ViewHandle, error) {
	img, ok := d.images[desc.Image]
	if !ok {
		return gpucore.InvalidHandle, fmt.Errorf("%w: view of image %d", gpucore.ErrInvalidHandle, desc.Image)
	}
	r := desc.Range
	layers := img.desc.Layers
	if img.desc.Type == gpucore.ImageType3D && desc.Type != gpucore.View3D && r.LevelCount == 1 {
		// 2D views of a 3D image address depth slices.
		layers = img.extent(r.BaseLevel).Depth
	}
	if r.BaseLevel+r.LevelCount > img.desc.Levels || r.BaseLayer+r.LayerCount > layers {
		return gpucore.InvalidHandle, fmt.Errorf("%w: view range outside image %d", ErrInvalidDesc, desc.Image)
	}
	if desc.Usage&^img.desc.Usage != 0 {
		return gpucore.InvalidHandle, fmt.Errorf("%w: view usage %#x not in image %d", ErrInvalidDesc, desc.Usage, desc.Image)
	}
	h := gpucore.ViewHandle(d.handle())
	d.views[h] = *desc
	return h, nil
}

// DestroyView implements gpucore.Device.
func (d *Device) DestroyView(h gpucore.ViewHandle) {
	if _, ok := d.views[h]; !ok {
		d.fail(fmt.Errorf("%w: destroy view %d", gpucore.ErrInvalidHandle, h))
		return
	}
	delete(d.views, h)
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferHandle, error) {
	if d.allocFails() {
		return gpucore.InvalidHandle, fmt.Errorf("soft: buffer %q: %w", desc.Label, gpucore.ErrOutOfMemory)
	}
	h := gpucore.BufferHandle(d.handle())
	d.buffers[h] = &buffer{desc: *desc, data: make([]byte, desc.Size)}
	return h, nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(h gpucore.BufferHandle) {
	if _, ok := d.buffers[h]; !ok {
		d.fail(fmt.Errorf("%w: destroy buffer %d", gpucore.ErrInvalidHandle, h))
		return
	}
	delete(d.buffers, h)
	delete(d.inUseBuffers, h)
}

// WriteBuffer implements gpucore.Device.
func (d *Device) WriteBuffer(h gpucore.BufferHandle, offset uint64, data []byte) error {
	b, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("%w: write buffer %d", gpucore.ErrInvalidHandle, h)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("%w: write of %d bytes at %d into %d-byte buffer", ErrOutOfBounds, len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// ReadBuffer implements gpucore.Device.
func (d *Device) ReadBuffer(h gpucore.BufferHandle, offset uint64, data []byte) error {
	b, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("%w: read buffer %d", gpucore.ErrInvalidHandle, h)
	}
	if b.gpuWritten {
		return gpucore.ErrBufferInUse
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("%w: read of %d bytes at %d from %d-byte buffer", ErrOutOfBounds, len(data), offset, len(b.data))
	}
	copy(data, b.data[offset:])
	return nil
}

// OutsideRenderPassCommandBuffer implements gpucore.Device. Every declared
// resource is in use until the next Finish.
func (d *Device) OutsideRenderPassCommandBuffer(acc *gpucore.Access) (gpucore.CommandBuffer, error) {
	for _, a := range acc.Images {
		if _, ok := d.images[a.Image]; !ok {
			return nil, fmt.Errorf("%w: access to image %d", gpucore.ErrInvalidHandle, a.Image)
		}
		d.inUseImages[a.Image] = true
	}
	for _, a := range acc.Buffers {
		b, ok := d.buffers[a.Buffer]
		if !ok {
			return nil, fmt.Errorf("%w: access to buffer %d", gpucore.ErrInvalidHandle, a.Buffer)
		}
		d.inUseBuffers[a.Buffer] = true
		if a.Kind.IsWrite() {
			b.gpuWritten = true
		}
	}
	return &commandBuffer{d: d}, nil
}

// FlushCommandsAndEndRenderPass implements gpucore.Device.
func (d *Device) FlushCommandsAndEndRenderPass(reason string) error {
	d.RenderPassEnds++
	return nil
}

// Flush implements gpucore.Device. Submitted work stays in use.
func (d *Device) Flush(reason string) error {
	d.Flushes++
	return nil
}

// Finish implements gpucore.Device.
func (d *Device) Finish(reason string) error {
	d.Finishes++
	clear(d.inUseImages)
	clear(d.inUseBuffers)
	for _, b := range d.buffers {
		b.gpuWritten = false
	}
	return nil
}

// ImageInUse implements gpucore.Device.
func (d *Device) ImageInUse(h gpucore.ImageHandle) bool { return d.inUseImages[h] }

// BufferInUse implements gpucore.Device.
func (d *Device) BufferInUse(h gpucore.BufferHandle) bool { return d.inUseBuffers[h] }

// MarkImageInUse makes h look referenced by in-flight GPU work.
func (d *Device) MarkImageInUse(h gpucore.ImageHandle) { d.inUseImages[h] = true }

// Utils implements gpucore.Device.
func (d *Device) Utils() gpucore.Utils { return utils{d: d} }

// LiveImages returns the number of images not destroyed.
func (d *Device) LiveImages() int { return len(d.images) }

// LiveViews returns the number of views not destroyed.
func (d *Device) LiveViews() int { return len(d.views) }

// LiveBuffers returns the number of buffers not destroyed.
func (d *Device) LiveBuffers() int { return len(d.buffers) }

// ImageDesc returns the descriptor an image was created with.
func (d *Device) ImageDesc(h gpucore.ImageHandle) (gpucore.ImageDesc, bool) {
	img, ok := d.images[h]
	if !ok {
		return gpucore.ImageDesc{}, false
	}
	return img.desc, true
}

// View returns the descriptor of a live view.
func (d *Device) View(h gpucore.ViewHandle) (gpucore.ViewDesc, bool) {
	v, ok := d.views[h]
	return v, ok
}

// Layout returns the native layout the image was last transitioned to.
func (d *Device) Layout(h gpucore.ImageHandle) gpucore.NativeLayout {
	if img, ok := d.images[h]; ok {
		return img.layout
	}
	return gpucore.LayoutUndefined
}

// LayerData returns a copy of one layer (sample 0) of a level, tightly
// packed in the image format, bypassing all synchronization.
func (d *Device) LayerData(h gpucore.ImageHandle, level, layer uint32) []byte {
	img, ok := d.images[h]
	if !ok {
		return nil
	}
	off := img.texelOffset(level, layer, 0, 0, 0, 0)
	return append([]byte(nil), img.levels[level][off:off+img.layerSize(level)]...)
}

// Err returns every validation failure seen so far.
func (d *Device) Err() error { return errors.Join(d.errs...) }

func (d *Device) fail(err error) { d.errs = append(d.errs, err) }
