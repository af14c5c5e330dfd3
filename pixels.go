package glvk

import (
	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// PixelSource is where texel data of an update comes from: HostPixels or
// BufferPixels. A nil source defines the level without contents.
type PixelSource interface {
	isPixelSource()
}

// HostPixels is texel data in client memory.
type HostPixels []byte

// BufferPixels is texel data in a Buffer starting at Offset.
type BufferPixels struct {
	Buffer *Buffer
	Offset uint64
}

func (HostPixels) isPixelSource()   {}
func (BufferPixels) isPixelSource() {}

// Unpack is the pixel store state of an upload.
type Unpack struct {
	// RowLength and ImageHeight are the source strides in texels. Zero
	// means tightly packed.
	RowLength   uint32
	ImageHeight uint32
	FlipY       bool
}

// rowLength returns the effective row stride for width w.
func (u Unpack) rowLength(w uint32) uint32 {
	if u.RowLength != 0 {
		return u.RowLength
	}
	return w
}

// imageHeight returns the effective image stride for height h.
func (u Unpack) imageHeight(h uint32) uint32 {
	if u.ImageHeight != 0 {
		return u.ImageHeight
	}
	return h
}

// sourceSize returns how many bytes an upload of e in id reads.
func (u Unpack) sourceSize(id format.ID, e gpucore.Extent3D, layers uint32) uint64 {
	info := format.Get(id)
	w := int(u.rowLength(e.Width))
	slices := int(max(e.Depth, 1) * max(layers, 1))
	slice := info.DataSize(w, int(u.imageHeight(e.Height)), 1)
	return uint64(slice*(slices-1) + info.DataSize(w, int(e.Height), 1))
}
