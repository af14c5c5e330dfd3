package vulkan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// Recorder implements gpucore.CommandBuffer over a Vulkan command buffer
// in the recording state.
//
// A command naming an unbound handle is dropped and its error kept; Err
// returns every dropped command joined.
type Recorder struct {
	cmd  vk.CommandBuffer
	res  Resources
	log  *slog.Logger
	errs []error

	barriers int
}

var _ gpucore.CommandBuffer = (*Recorder)(nil)

// NewRecorder returns a Recorder writing into cmd.
func NewRecorder(cmd vk.CommandBuffer, res Resources) *Recorder {
	return &Recorder{cmd: cmd, res: res, log: slog.New(slog.DiscardHandler)}
}

// SetLogger sets the logger for barrier diagnostics. nil silences it.
func (r *Recorder) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	r.log = l
}

// Err returns the errors of dropped commands.
func (r *Recorder) Err() error {
	return errors.Join(r.errs...)
}

// Barriers returns the number of image barriers recorded.
func (r *Recorder) Barriers() int { return r.barriers }

func (r *Recorder) fail(op string, err error) {
	r.errs = append(r.errs, fmt.Errorf("vulkan: %s: %w", op, err))
}

func (r *Recorder) image(op string, h gpucore.ImageHandle) (vk.Image, format.ID, bool) {
	img, f, ok := r.res.Image(h)
	if !ok {
		r.fail(op, fmt.Errorf("%w: %d", ErrUnboundImage, h))
	}
	return img, f, ok
}

func (r *Recorder) buffer(op string, h gpucore.BufferHandle) (vk.Buffer, bool) {
	buf, ok := r.res.Buffer(h)
	if !ok {
		r.fail(op, fmt.Errorf("%w: %d", ErrUnboundBuffer, h))
	}
	return buf, ok
}

// PipelineBarrier implements gpucore.CommandBuffer.
func (r *Recorder) PipelineBarrier(src, dst gpucore.PipelineStage, barriers ...gpucore.ImageBarrier) {
	if len(barriers) == 0 {
		return
	}
	out := make([]vk.ImageMemoryBarrier, 0, len(barriers))
	for _, b := range barriers {
		img, _, ok := r.image("barrier", b.Image)
		if !ok {
			continue
		}
		out = append(out, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       Access(b.SrcAccess),
			DstAccessMask:       Access(b.DstAccess),
			OldLayout:           Layout(b.OldLayout),
			NewLayout:           Layout(b.NewLayout),
			SrcQueueFamilyIndex: QueueFamily(b.SrcQueueFamily),
			DstQueueFamilyIndex: QueueFamily(b.DstQueueFamily),
			Image:               img,
			SubresourceRange:    subresourceRange(b.Range),
		})
		r.log.Debug("vulkan: barrier", "image", b.Image,
			"old", b.OldLayout.String(), "new", b.NewLayout.String())
	}
	if len(out) == 0 {
		return
	}
	r.barriers += len(out)
	vk.CmdPipelineBarrier(r.cmd, Stages(src), Stages(dst), 0, 0, nil, 0, nil, uint32(len(out)), out)
}

// ClearColorImage implements gpucore.CommandBuffer.
func (r *Recorder) ClearColorImage(h gpucore.ImageHandle, layout gpucore.NativeLayout, c format.Color, rng gpucore.SubresourceRange) {
	img, f, ok := r.image("clear color", h)
	if !ok {
		return
	}
	value := clearColor(format.Get(f), c)
	ranges := []vk.ImageSubresourceRange{subresourceRange(rng)}
	vk.CmdClearColorImage(r.cmd, img, Layout(layout), &value, 1, ranges)
}

// clearColor packs c into the union member matching the format kind.
func clearColor(info *format.Info, c format.Color) vk.ClearColorValue {
	var v vk.ClearColorValue
	b := v[:]
	for i, x := range c {
		var bits uint32
		switch {
		case info.IsSint():
			bits = uint32(int32(x))
		case info.IsInt():
			bits = uint32(max(x, 0))
		default:
			bits = math.Float32bits(float32(x))
		}
		binary.LittleEndian.PutUint32(b[i*4:], bits)
	}
	return v
}

// ClearDepthStencilImage implements gpucore.CommandBuffer.
func (r *Recorder) ClearDepthStencilImage(h gpucore.ImageHandle, layout gpucore.NativeLayout, depth float64, stencil uint32, rng gpucore.SubresourceRange) {
	img, _, ok := r.image("clear depth stencil", h)
	if !ok {
		return
	}
	value := vk.ClearDepthStencilValue{Depth: float32(depth), Stencil: stencil}
	ranges := []vk.ImageSubresourceRange{subresourceRange(rng)}
	vk.CmdClearDepthStencilImage(r.cmd, img, Layout(layout), &value, 1, ranges)
}

func bufferImageCopies(regions []gpucore.BufferImageCopy) []vk.BufferImageCopy {
	out := make([]vk.BufferImageCopy, len(regions))
	for i, rg := range regions {
		out[i] = vk.BufferImageCopy{
			BufferOffset:      vk.DeviceSize(rg.BufferOffset),
			BufferRowLength:   rg.RowLength,
			BufferImageHeight: rg.ImageHeight,
			ImageSubresource:  subresourceLayers(rg.Aspect, rg.Level, rg.BaseLayer, rg.LayerCount),
			ImageOffset:       offset(rg.Offset),
			ImageExtent:       extent(rg.Extent),
		}
	}
	return out
}

// CopyBufferToImage implements gpucore.CommandBuffer.
func (r *Recorder) CopyBufferToImage(bh gpucore.BufferHandle, h gpucore.ImageHandle, layout gpucore.NativeLayout, regions ...gpucore.BufferImageCopy) {
	buf, ok := r.buffer("copy buffer to image", bh)
	if !ok {
		return
	}
	img, _, ok := r.image("copy buffer to image", h)
	if !ok || len(regions) == 0 {
		return
	}
	rs := bufferImageCopies(regions)
	vk.CmdCopyBufferToImage(r.cmd, buf, img, Layout(layout), uint32(len(rs)), rs)
}

// CopyImageToBuffer implements gpucore.CommandBuffer.
func (r *Recorder) CopyImageToBuffer(h gpucore.ImageHandle, layout gpucore.NativeLayout, bh gpucore.BufferHandle, regions ...gpucore.BufferImageCopy) {
	img, _, ok := r.image("copy image to buffer", h)
	if !ok {
		return
	}
	buf, ok := r.buffer("copy image to buffer", bh)
	if !ok || len(regions) == 0 {
		return
	}
	rs := bufferImageCopies(regions)
	vk.CmdCopyImageToBuffer(r.cmd, img, Layout(layout), buf, uint32(len(rs)), rs)
}

func (r *Recorder) pair(op string, src, dst gpucore.ImageHandle) (vk.Image, vk.Image, bool) {
	s, _, ok1 := r.image(op, src)
	d, _, ok2 := r.image(op, dst)
	return s, d, ok1 && ok2
}

// CopyImage implements gpucore.CommandBuffer.
func (r *Recorder) CopyImage(src gpucore.ImageHandle, srcLayout gpucore.NativeLayout, dst gpucore.ImageHandle, dstLayout gpucore.NativeLayout, regions ...gpucore.ImageCopy) {
	s, d, ok := r.pair("copy image", src, dst)
	if !ok || len(regions) == 0 {
		return
	}
	rs := make([]vk.ImageCopy, len(regions))
	for i, rg := range regions {
		rs[i] = vk.ImageCopy{
			SrcSubresource: subresourceLayers(rg.Aspect, rg.SrcLevel, rg.SrcLayer, rg.LayerCount),
			SrcOffset:      offset(rg.SrcOffset),
			DstSubresource: subresourceLayers(rg.Aspect, rg.DstLevel, rg.DstLayer, rg.LayerCount),
			DstOffset:      offset(rg.DstOffset),
			Extent:         extent(rg.Extent),
		}
	}
	vk.CmdCopyImage(r.cmd, s, Layout(srcLayout), d, Layout(dstLayout), uint32(len(rs)), rs)
}

// BlitImage implements gpucore.CommandBuffer.
func (r *Recorder) BlitImage(src gpucore.ImageHandle, srcLayout gpucore.NativeLayout, dst gpucore.ImageHandle, dstLayout gpucore.NativeLayout, filter gpucore.Filter, regions ...gpucore.ImageBlit) {
	s, d, ok := r.pair("blit image", src, dst)
	if !ok || len(regions) == 0 {
		return
	}
	rs := make([]vk.ImageBlit, len(regions))
	for i, rg := range regions {
		rs[i] = vk.ImageBlit{
			SrcSubresource: subresourceLayers(rg.Aspect, rg.SrcLevel, rg.SrcLayer, rg.LayerCount),
			SrcOffsets:     [2]vk.Offset3D{offset(rg.SrcOffsets[0]), offset(rg.SrcOffsets[1])},
			DstSubresource: subresourceLayers(rg.Aspect, rg.DstLevel, rg.DstLayer, rg.LayerCount),
			DstOffsets:     [2]vk.Offset3D{offset(rg.DstOffsets[0]), offset(rg.DstOffsets[1])},
		}
	}
	vk.CmdBlitImage(r.cmd, s, Layout(srcLayout), d, Layout(dstLayout), uint32(len(rs)), rs, Filter(filter))
}

// ResolveImage implements gpucore.CommandBuffer.
func (r *Recorder) ResolveImage(src gpucore.ImageHandle, srcLayout gpucore.NativeLayout, dst gpucore.ImageHandle, dstLayout gpucore.NativeLayout, regions ...gpucore.ImageCopy) {
	s, d, ok := r.pair("resolve image", src, dst)
	if !ok || len(regions) == 0 {
		return
	}
	rs := make([]vk.ImageResolve, len(regions))
	for i, rg := range regions {
		rs[i] = vk.ImageResolve{
			SrcSubresource: subresourceLayers(rg.Aspect, rg.SrcLevel, rg.SrcLayer, rg.LayerCount),
			SrcOffset:      offset(rg.SrcOffset),
			DstSubresource: subresourceLayers(rg.Aspect, rg.DstLevel, rg.DstLayer, rg.LayerCount),
			DstOffset:      offset(rg.DstOffset),
			Extent:         extent(rg.Extent),
		}
	}
	vk.CmdResolveImage(r.cmd, s, Layout(srcLayout), d, Layout(dstLayout), uint32(len(rs)), rs)
}
