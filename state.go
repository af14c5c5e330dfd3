package glvk

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
)

// TextureType is the client-visible shape of a texture.
type TextureType uint8

// Texture types.
const (
	Texture2D TextureType = iota
	Texture2DArray
	Texture3D
	TextureCube
	TextureCubeArray
	Texture2DMultisample
	Texture2DMultisampleArray
)

var textureTypeNames = [...]string{
	Texture2D:                 "2D",
	Texture2DArray:            "2DArray",
	Texture3D:                 "3D",
	TextureCube:               "Cube",
	TextureCubeArray:          "CubeArray",
	Texture2DMultisample:      "2DMultisample",
	Texture2DMultisampleArray: "2DMultisampleArray",
}

func (t TextureType) String() string {
	if int(t) < len(textureTypeNames) {
		return textureTypeNames[t]
	}
	return fmt.Sprintf("TextureType(%d)", t)
}

// IsArray reports whether levels of t have client-addressed layers.
func (t TextureType) IsArray() bool {
	return t == Texture2DArray || t == TextureCubeArray || t == Texture2DMultisampleArray
}

// IsMultisample reports whether t is a multisample type.
func (t TextureType) IsMultisample() bool {
	return t == Texture2DMultisample || t == Texture2DMultisampleArray
}

// faces returns the number of level descriptions per level.
func (t TextureType) faces() int {
	if t == TextureCube {
		return 6
	}
	return 1
}

func (t TextureType) imageType() gpucore.ImageType {
	if t == Texture3D {
		return gpucore.ImageType3D
	}
	return gpucore.ImageType2D
}

// imageExtent splits a client size into the native extent and layer
// count. Array sizes carry layers in Depth.
func imageExtent(t TextureType, size gpucore.Extent3D) (gpucore.Extent3D, uint32) {
	e := gpucore.Extent3D{Width: size.Width, Height: size.Height, Depth: 1}
	switch t {
	case Texture3D:
		e.Depth = max(size.Depth, 1)
		return e, 1
	case TextureCube:
		return e, 6
	case Texture2DArray, TextureCubeArray, Texture2DMultisampleArray:
		return e, max(size.Depth, 1)
	}
	return e, 1
}

// Index names the subresource a specification call targets. For cube
// textures Layer is the face. For array textures a LayerCount of zero
// means every layer of the level.
type Index struct {
	Level      uint32
	Layer      uint32
	LayerCount uint32
}

// LevelIndex returns the index of a whole level.
func LevelIndex(level uint32) Index { return Index{Level: level} }

// FaceIndex returns the index of one cube face.
func FaceIndex(level, face uint32) Index { return Index{Level: level, Layer: face, LayerCount: 1} }

// LevelDesc is what the client defined for one level of one face.
type LevelDesc struct {
	Size    gpucore.Extent3D
	Format  format.ID
	Samples uint32
}

// Defined reports whether the level holds an image.
func (d LevelDesc) Defined() bool {
	return d.Size.Width != 0 && d.Size.Height != 0 && d.Format != format.None
}

// DirtyBits are the state changes SyncState reconciles.
type DirtyBits uint32

// Dirty bits.
const (
	DirtyBaseLevel DirtyBits = 1 << iota
	DirtyMaxLevel
	DirtySwizzle
	DirtySRGBOverride
	DirtySRGBDecode
	DirtyMinFilter
	DirtyBoundAsAttachment
	DirtyBoundAsStorage
)

// Command is the kind of command a SyncState call prepares for.
type Command uint8

// Commands.
const (
	CommandOther Command = iota
	CommandDraw
	CommandDispatch
	CommandGenerateMipmap
)

// defaultMaxLevel is the initial max level.
const defaultMaxLevel = 1000

// State is the client-visible state of a texture.
type State struct {
	Type TextureType

	BaseLevel uint32
	MaxLevel  uint32

	// Immutable is set by SetStorage. ImmutableLevels is the level count
	// it allocated.
	Immutable       bool
	ImmutableLevels uint32

	Swizzle        format.Swizzle
	SRGBOverride   format.ColorspaceOverride
	SkipSRGBDecode bool
	// MipmapFilter reports whether sampling uses levels above base.
	MipmapFilter       bool
	GenerateMipmapHint bool

	BoundAsAttachment bool
	BoundAsStorage    bool
	Protected         bool

	// ExternalMemory is set by SetStorageExternalMemory.
	ExternalMemory bool
	// Exported is set once the texture is the source of a SharedImage.
	Exported bool

	descs [6][image.MaxLevels]LevelDesc
}

func newState(t TextureType) State {
	return State{
		Type:         t,
		MaxLevel:     defaultMaxLevel,
		Swizzle:      format.Identity,
		MipmapFilter: true,
	}
}

// Desc returns the description of one level of one face.
func (s *State) Desc(face, level uint32) LevelDesc {
	if level >= image.MaxLevels {
		return LevelDesc{}
	}
	return s.descs[face][level]
}

func (s *State) setDesc(face, level uint32, d LevelDesc) {
	if level >= image.MaxLevels {
		panic(fmt.Sprintf("glvk: level %d out of range", level))
	}
	if s.Type == TextureCube {
		s.descs[face][level] = d
		return
	}
	s.descs[0][level] = d
}

func (s *State) clearDescs() { s.descs = [6][image.MaxLevels]LevelDesc{} }

// EffectiveBaseLevel is the base level clamped to the allocated range.
func (s *State) EffectiveBaseLevel() uint32 {
	if s.Immutable {
		return min(s.BaseLevel, s.ImmutableLevels-1)
	}
	return min(s.BaseLevel, image.MaxLevels-1)
}

// EffectiveMaxLevel is the max level clamped to the allocated range.
func (s *State) EffectiveMaxLevel() uint32 {
	base := s.EffectiveBaseLevel()
	if s.Immutable {
		return min(max(s.MaxLevel, base), s.ImmutableLevels-1)
	}
	return min(max(s.MaxLevel, base), image.MaxLevels-1)
}

// BaseDesc returns the description of the base level of the first face.
func (s *State) BaseDesc() LevelDesc { return s.Desc(0, s.EffectiveBaseLevel()) }

// MipmapMaxLevel is the last level of a full chain from the base level.
func (s *State) MipmapMaxLevel() uint32 {
	d := s.BaseDesc()
	dim := max(d.Size.Width, d.Size.Height)
	if s.Type == Texture3D {
		dim = max(dim, d.Size.Depth)
	}
	log2 := uint32(0)
	if dim > 0 {
		log2 = uint32(bits.Len32(dim)) - 1
	}
	return min(s.EffectiveBaseLevel()+log2, s.EffectiveMaxLevel())
}

// EnabledLevelCount returns the number of consecutive defined levels
// from the base whose sizes halve at each step. Without a mipmap filter
// only the base level is enabled.
func (s *State) EnabledLevelCount() uint32 {
	base := s.EffectiveBaseLevel()
	if !s.Desc(0, base).Defined() {
		return 0
	}
	if !s.MipmapFilter {
		return 1
	}
	top := s.MipmapMaxLevel()
	count := uint32(0)
	var want gpucore.Extent3D
	for l := base; l <= top; l++ {
		d := s.Desc(0, l)
		if !d.Defined() {
			break
		}
		if l > base && d.Size != want {
			break
		}
		want = gpucore.Extent3D{
			Width:  max(d.Size.Width>>1, 1),
			Height: max(d.Size.Height>>1, 1),
			Depth:  d.Size.Depth,
		}
		if s.Type == Texture3D {
			want.Depth = max(d.Size.Depth>>1, 1)
		}
		count++
	}
	return count
}

// IsCubeComplete reports whether every face of the base level has the
// same square size and format.
func (s *State) IsCubeComplete() bool {
	base := s.EffectiveBaseLevel()
	d := s.descs[0][base]
	if !d.Defined() || d.Size.Width != d.Size.Height {
		return false
	}
	for face := 1; face < 6; face++ {
		if s.descs[face][base] != d {
			return false
		}
	}
	return true
}
