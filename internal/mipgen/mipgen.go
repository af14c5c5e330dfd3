// Package mipgen plans compute mipmap generation and provides the
// downsample shader.
//
// One dispatch reads a source level and writes up to MaxLevelsPerDispatch
// levels below it. Plan splits a longer chain into batches; each batch
// reads the last level the previous one wrote.
package mipgen

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gogpu/naga"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

//go:embed shaders/downsample.wgsl
var downsampleWGSL string

// WorkgroupSize is the edge of the square workgroup.
const WorkgroupSize = 8

// MaxLevelsPerDispatch is the number of levels the shader writes per
// dispatch.
const MaxLevelsPerDispatch = 4

// StorageFormat is the only format the shader writes.
const StorageFormat = format.RGBA8Unorm

// ParamsSize is the byte size of the uniform block.
const ParamsSize = 16

// Batch is one dispatch.
type Batch struct {
	SrcLevel      uint32
	DstLevelCount uint32
}

// Plan splits the generation of count levels below srcLevel into
// dispatches of at most maxPerBatch levels. maxPerBatch is clamped to
// MaxLevelsPerDispatch.
func Plan(srcLevel, count, maxPerBatch uint32) []Batch {
	if count == 0 {
		return nil
	}
	maxPerBatch = min(max(maxPerBatch, 1), MaxLevelsPerDispatch)
	batches := make([]Batch, 0, (count+maxPerBatch-1)/maxPerBatch)
	for count > 0 {
		n := min(count, maxPerBatch)
		batches = append(batches, Batch{SrcLevel: srcLevel, DstLevelCount: n})
		srcLevel += n
		count -= n
	}
	return batches
}

// Params is the uniform block of one dispatch.
type Params struct {
	SrcLevel  uint32
	DstLevels uint32
	// SRGB averages in linear space and encodes the result.
	SRGB bool
}

// Bytes serializes p in the shader's layout.
func (p Params) Bytes() []byte {
	b := make([]byte, ParamsSize)
	binary.LittleEndian.PutUint32(b[0:], p.SrcLevel)
	binary.LittleEndian.PutUint32(b[4:], p.DstLevels)
	if p.SRGB {
		binary.LittleEndian.PutUint32(b[8:], 1)
	}
	return b
}

// Workgroups returns the dispatch size for a source level of extent e.
func Workgroups(e gpucore.Extent3D) (x, y uint32) {
	w := max(e.Width>>1, 1)
	h := max(e.Height>>1, 1)
	return (w + WorkgroupSize - 1) / WorkgroupSize, (h + WorkgroupSize - 1) / WorkgroupSize
}

// WGSL returns the shader source.
func WGSL() string { return downsampleWGSL }

var (
	compileOnce sync.Once
	spirv       []uint32
	compileErr  error
)

// SPIRV returns the shader compiled to SPIR-V words. Compilation runs once.
func SPIRV() ([]uint32, error) {
	compileOnce.Do(func() {
		b, err := naga.Compile(downsampleWGSL)
		if err != nil {
			compileErr = fmt.Errorf("mipgen: compile shader: %w", err)
			return
		}
		spirv = words(b)
	})
	return spirv, compileErr
}

// words packs little-endian SPIR-V bytes.
func words(b []byte) []uint32 {
	w := make([]uint32, len(b)/4)
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return w
}
