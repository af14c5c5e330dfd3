package glvk

import (
	"fmt"

	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
)

// Buffer is a host-visible buffer that can back pixel unpack operations.
//
// Staged updates keep a reference on the buffer, so Destroy only releases
// the device buffer once every update reading from it has been flushed or
// dropped.
type Buffer struct {
	ctx       *Context
	ref       *image.RefCounted[gpucore.BufferHandle]
	size      uint64
	destroyed bool
}

// NewBuffer creates a buffer holding a copy of data.
func (c *Context) NewBuffer(data []byte) (*Buffer, error) {
	if c.closed {
		return nil, ErrContextClosed
	}
	h, err := c.dev.CreateBuffer(&gpucore.BufferDesc{
		Label: "unpack",
		Size:  uint64(len(data)),
		Usage: gpucore.BufferUsageTransferSrc | gpucore.BufferUsageHostWrite | gpucore.BufferUsageHostRead,
	})
	if err != nil {
		return nil, fmt.Errorf("glvk: create buffer: %w", err)
	}
	if err := c.dev.WriteBuffer(h, 0, data); err != nil {
		c.dev.DestroyBuffer(h)
		return nil, fmt.Errorf("glvk: write buffer: %w", err)
	}
	b := &Buffer{
		ctx:  c,
		ref:  image.NewRefCounted(h, c.dev.DestroyBuffer),
		size: uint64(len(data)),
	}
	b.ref.AddRef()
	return b, nil
}

// Handle returns the device buffer.
func (b *Buffer) Handle() gpucore.BufferHandle { return b.ref.Get() }

// Size returns the size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Write replaces bytes starting at offset.
func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.destroyed {
		return ErrDestroyed
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("glvk: write of %d bytes at %d overflows %d byte buffer", len(data), offset, b.size)
	}
	return b.ctx.dev.WriteBuffer(b.ref.Get(), offset, data)
}

// read copies bytes starting at offset into dst.
func (b *Buffer) read(offset uint64, dst []byte) error {
	if offset+uint64(len(dst)) > b.size {
		return fmt.Errorf("glvk: read of %d bytes at %d overflows %d byte buffer", len(dst), offset, b.size)
	}
	return b.ctx.dev.ReadBuffer(b.ref.Get(), offset, dst)
}

// Destroy drops the client reference.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.ref.Release()
}
