package view

import (
	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// Class is the role a view plays.
type Class uint8

// View classes.
const (
	// ClassRead is sampled with the client swizzle applied.
	ClassRead Class = iota
	// ClassFetch is sampled without the client swizzle. Cube images are
	// viewed as 2D arrays.
	ClassFetch
	// ClassCopySrc reads one level in the linear format for draw and
	// compute copies.
	ClassCopySrc
	// ClassCopyDst writes one level and layer in the linear format.
	ClassCopyDst
	// ClassStorage is bound as a storage image: one level, all layers.
	ClassStorage
	// ClassDraw is a render target: one level, one or more layers.
	ClassDraw
	// ClassDepthOnly samples the depth aspect of a depth/stencil image.
	ClassDepthOnly
	// ClassStencilOnly samples the stencil aspect.
	ClassStencilOnly
)

var classNames = [...]string{
	ClassRead:        "read",
	ClassFetch:       "fetch",
	ClassCopySrc:     "copy-src",
	ClassCopyDst:     "copy-dst",
	ClassStorage:     "storage",
	ClassDraw:        "draw",
	ClassDepthOnly:   "depth-only",
	ClassStencilOnly: "stencil-only",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// colorspaceDependent reports whether the view format of the class follows
// the colorspace state.
func (c Class) colorspaceDependent() bool {
	return c == ClassRead || c == ClassFetch || c == ClassDraw
}

// Colorspace is the sRGB state that selects view formats.
type Colorspace struct {
	// Override reinterprets the image for sampling.
	Override format.ColorspaceOverride
	// SkipDecode samples sRGB images without decoding.
	SkipDecode bool
	// WriteLinear disables sRGB encoding of draw views.
	WriteLinear bool
}

// Key identifies a cached view.
type Key struct {
	Class      Class
	Type       gpucore.ViewType
	BaseLevel  uint32
	LevelCount uint32
	BaseLayer  uint32
	LayerCount uint32
	Colorspace Colorspace
	Swizzle    format.Swizzle
	Aspect     gpucore.Aspect
	// LevelsHash folds the client base and max levels the view was made
	// for.
	LevelsHash uint16
}

// LevelsHash packs a client (base, max) level pair.
func LevelsHash(base, top uint32) uint16 {
	return uint16(base&0xff) | uint16(top&0xff)<<8
}
