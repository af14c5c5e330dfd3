package native

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/soft"
)

// waitTimeout bounds every fence wait.
const waitTimeout = 5 * time.Second

// texture is the HAL side of one image.
type texture struct {
	tex  hal.Texture
	desc gpucore.ImageDesc
	// usage is the usage the texture was last transitioned to.
	usage gputypes.TextureUsage
	// dirty has bit l set when level l changed on the mirror since the
	// last upload.
	dirty uint64
}

func (t *texture) markDirty(base, count uint32) {
	for l := base; l < base+count && l < t.desc.Levels; l++ {
		t.dirty |= 1 << l
	}
}

// Device is a gpucore.Device over a hal.Device and hal.Queue.
//
// Device is not safe for concurrent use.
type Device struct {
	mirror   *soft.Device
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	// owned is set when Close destroys the device and instance.
	owned bool

	features gpucore.Features
	textures map[gpucore.ImageHandle]*texture
	views    map[gpucore.ViewHandle]hal.TextureView

	fence     hal.Fence
	submitted uint64
	pending   []hal.CommandBuffer
	// garbage holds textures destroyed while the GPU still used them.
	garbage []hal.Texture

	closed bool
	log    *slog.Logger
}

var _ gpucore.Device = (*Device)(nil)

// NewDevice wraps a HAL device and queue. The caller keeps ownership of
// both; Close releases only what the Device created.
func NewDevice(device hal.Device, queue hal.Queue) (*Device, error) {
	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("native: create fence: %w", err)
	}
	f := Features()
	return &Device{
		mirror:   soft.New(f),
		device:   device,
		queue:    queue,
		features: f,
		textures: make(map[gpucore.ImageHandle]*texture),
		views:    make(map[gpucore.ViewHandle]hal.TextureView),
		fence:    fence,
		log:      slog.New(slog.DiscardHandler),
	}, nil
}

// NewDeviceFromProvider wraps the HAL device of a provider such as a
// gogpu application. The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue.
func NewDeviceFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoProvider)
	}
	return NewDevice(device, queue)
}

// OpenInstance opens the first discrete or integrated adapter of inst,
// or the first adapter if there is neither. Close destroys the device
// and inst.
func OpenInstance(inst hal.Instance) (*Device, error) {
	adapters := inst.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, ErrNoGPU
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("native: open device: %w", err)
	}
	d, err := NewDevice(openDev.Device, openDev.Queue)
	if err != nil {
		openDev.Device.Destroy()
		return nil, err
	}
	d.instance = inst
	d.owned = true
	return d, nil
}

// SetLogger sets the device logger. Nil disables logging.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	d.log = l
}

// Features implements gpucore.Device.
func (d *Device) Features() gpucore.Features { return d.features }

// CreateImage implements gpucore.Device.
func (d *Device) CreateImage(desc *gpucore.ImageDesc) (gpucore.ImageHandle, error) {
	if d.closed {
		return gpucore.InvalidHandle, ErrClosed
	}
	hf, ok := TextureFormat(desc.Format)
	if !ok {
		return gpucore.InvalidHandle, fmt.Errorf("%w: image %q format %v", ErrUnsupportedFormat, desc.Label, desc.Format)
	}
	if desc.Samples > d.features.MaxSamples {
		return gpucore.InvalidHandle, fmt.Errorf("native: image %q: %d samples: %w", desc.Label, desc.Samples, gpucore.ErrUnsupported)
	}
	h, err := d.mirror.CreateImage(desc)
	if err != nil {
		return h, err
	}
	depth := max(desc.Layers, 1)
	if desc.Type == gpucore.ImageType3D {
		depth = max(desc.Extent.Depth, 1)
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Extent.Width, Height: desc.Extent.Height, DepthOrArrayLayers: depth},
		MipLevelCount: desc.Levels,
		SampleCount:   1,
		Dimension:     textureDimension(desc.Type),
		Format:        hf,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		d.mirror.DestroyImage(h)
		return gpucore.InvalidHandle, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}
	d.textures[h] = &texture{tex: tex, desc: *desc}
	d.log.Debug("native: texture created", "label", desc.Label, "image", h,
		"size", fmt.Sprintf("%dx%d", desc.Extent.Width, desc.Extent.Height), "levels", desc.Levels)
	return h, nil
}

// ImportImage implements gpucore.Device. It always fails.
func (d *Device) ImportImage(desc *gpucore.ImageDesc, _ gpucore.ExternalMemory) (gpucore.ImageHandle, error) {
	return gpucore.InvalidHandle, fmt.Errorf("%w: image %q", ErrExternalMemory, desc.Label)
}

// DestroyImage implements gpucore.Device. Textures still referenced by
// submitted work are released at the next Finish.
func (d *Device) DestroyImage(h gpucore.ImageHandle) {
	inUse := d.mirror.ImageInUse(h)
	d.mirror.DestroyImage(h)
	t, ok := d.textures[h]
	if !ok {
		return
	}
	delete(d.textures, h)
	if inUse {
		d.garbage = append(d.garbage, t.tex)
		return
	}
	d.device.DestroyTexture(t.tex)
}

// CreateView implements gpucore.Device. HAL views carry no swizzle.
func (d *Device) CreateView(desc *gpucore.ViewDesc) (gpucore.ViewHandle, error) {
	h, err := d.mirror.CreateView(desc)
	if err != nil {
		return h, err
	}
	t := d.textures[desc.Image]
	if t.desc.Type == gpucore.ImageType3D && desc.Type != gpucore.View3D {
		// Slices of a 3D texture have no HAL view; only the mirror
		// renders into them.
		d.views[h] = nil
		return h, nil
	}
	hf, _ := TextureFormat(desc.Format)
	v, err := d.device.CreateTextureView(t.tex, &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          hf,
		Dimension:       viewDimension(desc.Type),
		Aspect:          viewAspect(desc.Range.Aspect),
		BaseMipLevel:    desc.Range.BaseLevel,
		MipLevelCount:   desc.Range.LevelCount,
		BaseArrayLayer:  desc.Range.BaseLayer,
		ArrayLayerCount: desc.Range.LayerCount,
	})
	if err != nil {
		d.mirror.DestroyView(h)
		return gpucore.InvalidHandle, fmt.Errorf("native: create view %q: %w", desc.Label, err)
	}
	d.views[h] = v
	return h, nil
}

// DestroyView implements gpucore.Device.
func (d *Device) DestroyView(h gpucore.ViewHandle) {
	d.mirror.DestroyView(h)
	if v, ok := d.views[h]; ok {
		if v != nil {
			d.device.DestroyTextureView(v)
		}
		delete(d.views, h)
	}
}

// CreateBuffer implements gpucore.Device. Buffers are host staging memory
// and have no HAL counterpart.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferHandle, error) {
	return d.mirror.CreateBuffer(desc)
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(h gpucore.BufferHandle) { d.mirror.DestroyBuffer(h) }

// WriteBuffer implements gpucore.Device.
func (d *Device) WriteBuffer(h gpucore.BufferHandle, offset uint64, data []byte) error {
	return d.mirror.WriteBuffer(h, offset, data)
}

// ReadBuffer implements gpucore.Device.
func (d *Device) ReadBuffer(h gpucore.BufferHandle, offset uint64, data []byte) error {
	return d.mirror.ReadBuffer(h, offset, data)
}

// OutsideRenderPassCommandBuffer implements gpucore.Device.
func (d *Device) OutsideRenderPassCommandBuffer(acc *gpucore.Access) (gpucore.CommandBuffer, error) {
	if d.closed {
		return nil, ErrClosed
	}
	inner, err := d.mirror.OutsideRenderPassCommandBuffer(acc)
	if err != nil {
		return nil, err
	}
	return &commandBuffer{inner: inner, d: d}, nil
}

// FlushCommandsAndEndRenderPass implements gpucore.Device.
func (d *Device) FlushCommandsAndEndRenderPass(reason string) error {
	return d.mirror.FlushCommandsAndEndRenderPass(reason)
}

// Flush implements gpucore.Device. It uploads changed levels and
// transitions textures without waiting for the GPU.
func (d *Device) Flush(reason string) error {
	if d.closed {
		return ErrClosed
	}
	if err := d.mirror.Flush(reason); err != nil {
		return err
	}
	if err := d.sync(); err != nil {
		return fmt.Errorf("native: flush (%s): %w", reason, err)
	}
	d.log.Debug("native: flushed", "reason", reason, "submitted", d.submitted)
	return nil
}

// Finish implements gpucore.Device.
func (d *Device) Finish(reason string) error {
	if err := d.Flush(reason); err != nil {
		return err
	}
	if err := d.wait(); err != nil {
		return fmt.Errorf("native: finish (%s): %w", reason, err)
	}
	return d.mirror.Finish(reason)
}

// ImageInUse implements gpucore.Device.
func (d *Device) ImageInUse(h gpucore.ImageHandle) bool { return d.mirror.ImageInUse(h) }

// BufferInUse implements gpucore.Device.
func (d *Device) BufferInUse(h gpucore.BufferHandle) bool { return d.mirror.BufferInUse(h) }

// Utils implements gpucore.Device.
func (d *Device) Utils() gpucore.Utils { return utils{d: d} }

// Err returns the validation failures the mirror recorded.
func (d *Device) Err() error { return d.mirror.Err() }

// LiveTextures returns the number of HAL textures not destroyed,
// including those waiting for the GPU.
func (d *Device) LiveTextures() int { return len(d.textures) + len(d.garbage) }

// Close waits for the GPU and releases every HAL object the device
// created. A device opened with OpenInstance or Open also destroys the
// HAL device and instance.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	err := d.Finish("close")
	d.closed = true
	for _, v := range d.views {
		if v != nil {
			d.device.DestroyTextureView(v)
		}
	}
	for _, h := range slices.Sorted(maps.Keys(d.textures)) {
		d.device.DestroyTexture(d.textures[h].tex)
	}
	clear(d.views)
	clear(d.textures)
	d.device.DestroyFence(d.fence)
	if d.owned {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	return err
}
