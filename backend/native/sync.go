package native

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// copyPitchAlignment is the row alignment of texture to buffer copies.
const copyPitchAlignment = 256

// transition returns the barrier moving t to usage and records it.
func (t *texture) transition(usage gputypes.TextureUsage) hal.TextureBarrier {
	b := hal.TextureBarrier{
		Texture: t.tex,
		Usage:   hal.TextureUsageTransition{OldUsage: t.usage, NewUsage: usage},
	}
	t.usage = usage
	return b
}

// sync makes the HAL textures match the mirror: changed levels are
// uploaded and every texture ends in the usage of its mirror layout.
func (d *Device) sync() error {
	handles := slices.Sorted(maps.Keys(d.textures))

	var toCopy []hal.TextureBarrier
	var uploads []gpucore.ImageHandle
	for _, h := range handles {
		t := d.textures[h]
		if t.dirty == 0 {
			continue
		}
		if t.usage != gputypes.TextureUsageCopyDst {
			toCopy = append(toCopy, t.transition(gputypes.TextureUsageCopyDst))
		}
		uploads = append(uploads, h)
	}
	if err := d.submitTransitions("glvk_upload", toCopy); err != nil {
		return err
	}
	for _, h := range uploads {
		d.upload(h, d.textures[h])
	}

	var final []hal.TextureBarrier
	for _, h := range handles {
		t := d.textures[h]
		if want := layoutUsage(d.mirror.Layout(h)); want != 0 && want != t.usage {
			final = append(final, t.transition(want))
		}
	}
	return d.submitTransitions("glvk_resident", final)
}

// layerCount returns the array layers or depth slices of a level.
func layerCount(desc *gpucore.ImageDesc, e gpucore.Extent3D) uint32 {
	if desc.Type == gpucore.ImageType3D {
		return e.Depth
	}
	return max(desc.Layers, 1)
}

// upload writes every dirty level of t from the mirror.
func (d *Device) upload(h gpucore.ImageHandle, t *texture) {
	info := format.Get(t.desc.Format)
	for level := range t.desc.Levels {
		if t.dirty&(1<<level) == 0 {
			continue
		}
		e := gpucore.LevelExtent(t.desc.Extent, level)
		var data []byte
		for layer := range max(t.desc.Layers, 1) {
			data = append(data, d.mirror.LayerData(h, level, layer)...)
		}
		d.queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: t.tex, MipLevel: level},
			data,
			&hal.ImageDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(info.RowPitch(int(e.Width))),
				RowsPerImage: e.Height,
			},
			&hal.Extent3D{Width: e.Width, Height: e.Height, DepthOrArrayLayers: layerCount(&t.desc, e)},
		)
	}
	d.log.Debug("native: uploaded", "image", h, "levels", fmt.Sprintf("%b", t.dirty))
	t.dirty = 0
}

func (d *Device) submitTransitions(label string, barriers []hal.TextureBarrier) error {
	if len(barriers) == 0 {
		return nil
	}
	return d.encode(label, func(encoder hal.CommandEncoder) {
		encoder.TransitionTextures(barriers)
	})
}

// encode records one command buffer and submits it.
func (d *Device) encode(label string, record func(hal.CommandEncoder)) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	record(encoder)
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	d.submitted++
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, d.fence, d.submitted); err != nil {
		d.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("submit: %w", err)
	}
	d.pending = append(d.pending, cmdBuf)
	return nil
}

// wait blocks until every submission completed, then frees command
// buffers and textures destroyed while in use.
func (d *Device) wait() error {
	if len(d.pending) == 0 && len(d.garbage) == 0 {
		return nil
	}
	if d.submitted > 0 {
		ok, err := d.device.Wait(d.fence, d.submitted, waitTimeout)
		if err != nil {
			return fmt.Errorf("wait for GPU: %w", err)
		}
		if !ok {
			return ErrGPUTimeout
		}
	}
	for _, cb := range d.pending {
		d.device.FreeCommandBuffer(cb)
	}
	for _, tex := range d.garbage {
		d.device.DestroyTexture(tex)
	}
	d.pending = d.pending[:0]
	d.garbage = d.garbage[:0]
	return nil
}

// ReadLevel copies every layer of a level back from the HAL texture,
// tightly packed. Pending mirror changes are uploaded first.
func (d *Device) ReadLevel(h gpucore.ImageHandle, level uint32) ([]byte, error) {
	t, ok := d.textures[h]
	if !ok {
		return nil, fmt.Errorf("%w: read image %d", gpucore.ErrInvalidHandle, h)
	}
	if level >= t.desc.Levels {
		return nil, fmt.Errorf("%w: read level %d of %d", gpucore.ErrInvalidHandle, level, t.desc.Levels)
	}
	if err := d.Flush("read level"); err != nil {
		return nil, err
	}

	info := format.Get(t.desc.Format)
	e := gpucore.LevelExtent(t.desc.Extent, level)
	count := layerCount(&t.desc, e)
	bytesPerRow := uint32(info.RowPitch(int(e.Width)))
	aligned := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	size := uint64(aligned) * uint64(e.Height) * uint64(count)

	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "glvk_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create readback buffer: %w", err)
	}
	defer d.device.DestroyBuffer(buf)

	restore := t.usage
	err = d.encode("glvk_readback", func(encoder hal.CommandEncoder) {
		if t.usage != gputypes.TextureUsageCopySrc {
			encoder.TransitionTextures([]hal.TextureBarrier{t.transition(gputypes.TextureUsageCopySrc)})
		}
		encoder.CopyTextureToBuffer(t.tex, buf, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: aligned, RowsPerImage: e.Height},
			TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: level},
			Size:         hal.Extent3D{Width: e.Width, Height: e.Height, DepthOrArrayLayers: count},
		}})
		if restore != 0 && restore != t.usage {
			encoder.TransitionTextures([]hal.TextureBarrier{t.transition(restore)})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("native: read level %d: %w", level, err)
	}
	if err := d.wait(); err != nil {
		return nil, fmt.Errorf("native: read level %d: %w", level, err)
	}

	raw := make([]byte, size)
	if err := d.queue.ReadBuffer(buf, 0, raw); err != nil {
		return nil, fmt.Errorf("native: readback: %w", err)
	}
	if aligned == bytesPerRow {
		return raw, nil
	}
	rows := int(e.Height) * int(count)
	out := make([]byte, int(bytesPerRow)*rows)
	for row := range rows {
		copy(out[row*int(bytesPerRow):(row+1)*int(bytesPerRow)], raw[row*int(aligned):])
	}
	return out, nil
}
