package image

import (
	"fmt"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// UpdateKind tags the payload of an Update.
type UpdateKind uint8

// Update kinds.
const (
	// UpdateClear clears whole layers of a level.
	UpdateClear UpdateKind = iota
	// UpdateClearPartial clears a box of a level.
	UpdateClearPartial
	// UpdateClearEmulatedChannelsOnly sets the emulated components of the
	// actual format to their defaults.
	UpdateClearEmulatedChannelsOnly
	// UpdateBuffer copies from a staging or client buffer.
	UpdateBuffer
	// UpdateImage copies from another image.
	UpdateImage
)

var updateKindNames = [...]string{
	UpdateClear:                     "Clear",
	UpdateClearPartial:              "ClearPartial",
	UpdateClearEmulatedChannelsOnly: "ClearEmulatedChannelsOnly",
	UpdateBuffer:                    "Buffer",
	UpdateImage:                     "Image",
}

func (k UpdateKind) String() string {
	if int(k) < len(updateKindNames) {
		return updateKindNames[k]
	}
	return fmt.Sprintf("UpdateKind(%d)", k)
}

// ClearValue is a clear in the actual format's component space. Color
// formats use Color; depth/stencil formats use Depth and Stencil.
type ClearValue struct {
	Color   format.Color
	Depth   float64
	Stencil uint32
	// Mask selects the components written by a color clear. Zero writes
	// all of them.
	Mask uint8
}

// RefCounted shares one resource between several updates. The release
// function runs when the last reference is dropped.
type RefCounted[T any] struct {
	value   T
	refs    int
	release func(T)
}

// NewRefCounted wraps v. release may be nil for resources the engine does
// not own.
func NewRefCounted[T any](v T, release func(T)) *RefCounted[T] {
	return &RefCounted[T]{value: v, release: release}
}

// Get returns the wrapped resource.
func (r *RefCounted[T]) Get() T { return r.value }

// AddRef adds a reference.
func (r *RefCounted[T]) AddRef() { r.refs++ }

// Release drops a reference.
func (r *RefCounted[T]) Release() {
	if r.refs <= 0 {
		panic("image: RefCounted released more often than referenced")
	}
	r.refs--
	if r.refs == 0 && r.release != nil {
		r.release(r.value)
	}
}

// Refs returns the number of live references.
func (r *RefCounted[T]) Refs() int { return r.refs }

// BufferSource is the payload of an UpdateBuffer.
type BufferSource struct {
	Buffer *RefCounted[gpucore.BufferHandle]
	Offset uint64
	// RowLength and ImageHeight are in texels; zero means tightly packed.
	RowLength   uint32
	ImageHeight uint32
	// Format is the format of the buffer texels. It matches the actual
	// format of the image.
	Format format.ID
	// Size is the byte size of the staged region, used for pruning.
	Size uint64
}

// ImageSource is the payload of an UpdateImage.
type ImageSource struct {
	Image  *RefCounted[*Storage]
	Level  VkLevel
	Layer  uint32
	Offset gpucore.Offset3D
	Format format.ID
}

// Update is one staged change to a level.
type Update struct {
	Kind       UpdateKind
	Aspect     gpucore.Aspect
	Level      GLLevel
	Layer      uint32
	LayerCount uint32
	// Box is the destination region. For UpdateClear it covers the level.
	Box gpucore.Box

	Clear  ClearValue
	Buffer *BufferSource
	Image  *ImageSource
}

// retain adds the reference an update holds on its source.
func (u *Update) retain() {
	switch u.Kind {
	case UpdateBuffer:
		u.Buffer.Buffer.AddRef()
	case UpdateImage:
		u.Image.Image.AddRef()
	}
}

// release drops the update's reference on its source.
func (u *Update) release() {
	switch u.Kind {
	case UpdateBuffer:
		u.Buffer.Buffer.Release()
	case UpdateImage:
		u.Image.Image.Release()
	}
}

// IsClear reports whether the update is any kind of clear.
func (u *Update) IsClear() bool {
	return u.Kind == UpdateClear || u.Kind == UpdateClearPartial || u.Kind == UpdateClearEmulatedChannelsOnly
}

// writesAllComponents reports whether the update defines every component
// of the texels it touches.
func (u *Update) writesAllComponents() bool {
	switch u.Kind {
	case UpdateClearEmulatedChannelsOnly:
		return false
	case UpdateClearPartial:
		return u.Clear.Mask == 0
	}
	return true
}

// intersectsLayers reports whether the update writes any of [start, end).
func (u *Update) intersectsLayers(start, end uint32) bool {
	return u.Layer < end && start < u.Layer+u.LayerCount
}

// coversLayers reports whether the update writes every layer of o.
func (u *Update) coversLayers(o *Update) bool {
	return u.Layer <= o.Layer && u.Layer+u.LayerCount >= o.Layer+o.LayerCount
}

// stagedBytes returns the staging memory the update holds.
func (u *Update) stagedBytes() uint64 {
	if u.Kind == UpdateBuffer {
		return u.Buffer.Size
	}
	return 0
}
