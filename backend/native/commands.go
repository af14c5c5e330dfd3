package native

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// commandBuffer executes on the mirror and marks the levels it writes
// for upload.
type commandBuffer struct {
	inner gpucore.CommandBuffer
	d     *Device
}

var _ gpucore.CommandBuffer = (*commandBuffer)(nil)

func (c *commandBuffer) dirty(h gpucore.ImageHandle, base, count uint32) {
	if t, ok := c.d.textures[h]; ok {
		t.markDirty(base, count)
	}
}

// PipelineBarrier implements gpucore.CommandBuffer. The HAL sees only the
// final layout at the next flush.
func (c *commandBuffer) PipelineBarrier(src, dst gpucore.PipelineStage, barriers ...gpucore.ImageBarrier) {
	c.inner.PipelineBarrier(src, dst, barriers...)
}

// ClearColorImage implements gpucore.CommandBuffer.
func (c *commandBuffer) ClearColorImage(img gpucore.ImageHandle, layout gpucore.NativeLayout, col format.Color, r gpucore.SubresourceRange) {
	c.inner.ClearColorImage(img, layout, col, r)
	c.dirty(img, r.BaseLevel, r.LevelCount)
}

// ClearDepthStencilImage implements gpucore.CommandBuffer.
func (c *commandBuffer) ClearDepthStencilImage(img gpucore.ImageHandle, layout gpucore.NativeLayout, depth float64, stencil uint32, r gpucore.SubresourceRange) {
	c.inner.ClearDepthStencilImage(img, layout, depth, stencil, r)
	c.dirty(img, r.BaseLevel, r.LevelCount)
}

// CopyBufferToImage implements gpucore.CommandBuffer.
func (c *commandBuffer) CopyBufferToImage(buf gpucore.BufferHandle, img gpucore.ImageHandle, layout gpucore.NativeLayout, regions ...gpucore.BufferImageCopy) {
	c.inner.CopyBufferToImage(buf, img, layout, regions...)
	for _, r := range regions {
		c.dirty(img, r.Level, 1)
	}
}

// CopyImageToBuffer implements gpucore.CommandBuffer.
func (c *commandBuffer) CopyImageToBuffer(img gpucore.ImageHandle, layout gpucore.NativeLayout, buf gpucore.BufferHandle, regions ...gpucore.BufferImageCopy) {
	c.inner.CopyImageToBuffer(img, layout, buf, regions...)
}

// CopyImage implements gpucore.CommandBuffer.
func (c *commandBuffer) CopyImage(src gpucore.ImageHandle, srcLayout gpucore.NativeLayout, dst gpucore.ImageHandle, dstLayout gpucore.NativeLayout, regions ...gpucore.ImageCopy) {
	c.inner.CopyImage(src, srcLayout, dst, dstLayout, regions...)
	for _, r := range regions {
		c.dirty(dst, r.DstLevel, 1)
	}
}

// BlitImage implements gpucore.CommandBuffer.
func (c *commandBuffer) BlitImage(src gpucore.ImageHandle, srcLayout gpucore.NativeLayout, dst gpucore.ImageHandle, dstLayout gpucore.NativeLayout, filter gpucore.Filter, regions ...gpucore.ImageBlit) {
	c.inner.BlitImage(src, srcLayout, dst, dstLayout, filter, regions...)
	for _, r := range regions {
		c.dirty(dst, r.DstLevel, 1)
	}
}

// ResolveImage implements gpucore.CommandBuffer.
func (c *commandBuffer) ResolveImage(src gpucore.ImageHandle, srcLayout gpucore.NativeLayout, dst gpucore.ImageHandle, dstLayout gpucore.NativeLayout, regions ...gpucore.ImageCopy) {
	c.inner.ResolveImage(src, srcLayout, dst, dstLayout, regions...)
	for _, r := range regions {
		c.dirty(dst, r.DstLevel, 1)
	}
}

// utils runs the mirror's helpers and marks their destinations.
type utils struct {
	d *Device
}

var _ gpucore.Utils = utils{}

func (u utils) unwrap(cmd gpucore.CommandBuffer) (*commandBuffer, error) {
	c, ok := cmd.(*commandBuffer)
	if !ok || c.d != u.d {
		return nil, fmt.Errorf("native: command buffer %T not recorded on this device", cmd)
	}
	return c, nil
}

// ClearRegion implements gpucore.Utils.
func (u utils) ClearRegion(cmd gpucore.CommandBuffer, p gpucore.ClearRegionParams) error {
	c, err := u.unwrap(cmd)
	if err != nil {
		return err
	}
	if err := u.d.mirror.Utils().ClearRegion(c.inner, p); err != nil {
		return err
	}
	c.dirty(p.Image, p.Level, 1)
	return nil
}

// CopyImageWithDraw implements gpucore.Utils.
func (u utils) CopyImageWithDraw(cmd gpucore.CommandBuffer, p gpucore.DrawCopyParams) error {
	c, err := u.unwrap(cmd)
	if err != nil {
		return err
	}
	if err := u.d.mirror.Utils().CopyImageWithDraw(c.inner, p); err != nil {
		return err
	}
	c.dirty(p.Dst, p.DstLevel, 1)
	return nil
}

// GenerateMipmapWithDraw implements gpucore.Utils.
func (u utils) GenerateMipmapWithDraw(cmd gpucore.CommandBuffer, p gpucore.MipmapParams) error {
	c, err := u.unwrap(cmd)
	if err != nil {
		return err
	}
	if err := u.d.mirror.Utils().GenerateMipmapWithDraw(c.inner, p); err != nil {
		return err
	}
	c.dirty(p.Image, p.SrcLevel+1, p.DstLevelCount)
	return nil
}

// GenerateMipmapWithCompute implements gpucore.Utils. Features never
// advertise it; the mirror rejects the call.
func (u utils) GenerateMipmapWithCompute(cmd gpucore.CommandBuffer, p gpucore.MipmapParams) error {
	c, err := u.unwrap(cmd)
	if err != nil {
		return err
	}
	return u.d.mirror.Utils().GenerateMipmapWithCompute(c.inner, p)
}
