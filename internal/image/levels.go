package image

import (
	"fmt"
	"math/bits"
)

// MaxLevels is the largest number of mip levels an image can have.
const MaxLevels = 16

// GLLevel is a client-visible mip level.
type GLLevel uint32

// VkLevel is a mip level of the native image. VkLevel 0 is the first
// allocated GLLevel.
type VkLevel uint32

// LevelMask is a set of GLLevels.
type LevelMask uint32

// Has reports whether l is in the mask.
func (m LevelMask) Has(l GLLevel) bool { return m&(1<<l) != 0 }

// With returns m with l added.
func (m LevelMask) With(l GLLevel) LevelMask { return m | 1<<l }

// Without returns m with l removed.
func (m LevelMask) Without(l GLLevel) LevelMask { return m &^ (1 << l) }

// Any reports whether the mask is not empty.
func (m LevelMask) Any() bool { return m != 0 }

// Count returns the number of levels in the mask.
func (m LevelMask) Count() int { return bits.OnesCount32(uint32(m)) }

// LevelRange returns the mask of levels [start, end).
func LevelRange(start, end GLLevel) LevelMask {
	if end <= start {
		return 0
	}
	return LevelMask((uint64(1)<<end - 1) &^ (uint64(1)<<start - 1))
}

// ToVkLevel maps a client level onto the native image. It panics if l is
// below the first allocated level.
func (s *Storage) ToVkLevel(l GLLevel) VkLevel {
	if l < s.firstAllocatedLevel {
		panic(fmt.Sprintf("image: level %d below first allocated level %d", l, s.firstAllocatedLevel))
	}
	return VkLevel(l - s.firstAllocatedLevel)
}

// ToGLLevel maps a native level back to the client level.
func (s *Storage) ToGLLevel(l VkLevel) GLLevel {
	return s.firstAllocatedLevel + GLLevel(l)
}

// IsAllocated reports whether l is backed by the native image.
func (s *Storage) IsAllocated(l GLLevel) bool {
	return s.Valid() && l >= s.firstAllocatedLevel && l < s.firstAllocatedLevel+GLLevel(s.levels)
}

// FirstAllocatedLevel returns the client level stored at native level 0.
func (s *Storage) FirstAllocatedLevel() GLLevel { return s.firstAllocatedLevel }

// LastAllocatedLevel returns the last client level backed by the image.
func (s *Storage) LastAllocatedLevel() GLLevel {
	return s.firstAllocatedLevel + GLLevel(s.levels) - 1
}

func checkLevel(l GLLevel) {
	if l >= MaxLevels {
		panic(fmt.Sprintf("image: level %d out of range", l))
	}
}
