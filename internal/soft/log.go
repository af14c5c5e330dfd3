package soft

import (
	"fmt"

	"github.com/gogpu/glvk/gpucore"
)

// Op is the kind of a logged command.
type Op uint8

// Logged operations.
const (
	OpBarrier Op = iota
	OpClearColor
	OpClearDepthStencil
	OpCopyBufferToImage
	OpCopyImageToBuffer
	OpCopyImage
	OpBlitImage
	OpResolveImage
	OpClearRegion
	OpDrawCopy
	OpDrawMipmap
	OpComputeMipmap
)

var opNames = [...]string{
	OpBarrier:           "Barrier",
	OpClearColor:        "ClearColor",
	OpClearDepthStencil: "ClearDepthStencil",
	OpCopyBufferToImage: "CopyBufferToImage",
	OpCopyImageToBuffer: "CopyImageToBuffer",
	OpCopyImage:         "CopyImage",
	OpBlitImage:         "BlitImage",
	OpResolveImage:      "ResolveImage",
	OpClearRegion:       "ClearRegion",
	OpDrawCopy:          "DrawCopy",
	OpDrawMipmap:        "DrawMipmap",
	OpComputeMipmap:     "ComputeMipmap",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Command is one entry of the command log.
type Command struct {
	Op Op
	// Image is the written image, or the read image for copies to buffers.
	Image gpucore.ImageHandle
	Src   gpucore.ImageHandle
	// Level and Layer are the first native level and layer written.
	Level uint32
	Layer uint32
	// Barrier is set for OpBarrier.
	Barrier  gpucore.ImageBarrier
	SrcStage gpucore.PipelineStage
	DstStage gpucore.PipelineStage
}

func (c Command) String() string {
	if c.Op == OpBarrier {
		return fmt.Sprintf("Barrier(img=%d %v->%v)", c.Barrier.Image, c.Barrier.OldLayout, c.Barrier.NewLayout)
	}
	return fmt.Sprintf("%v(img=%d level=%d layer=%d)", c.Op, c.Image, c.Level, c.Layer)
}

// Commands returns a copy of the command log.
func (d *Device) Commands() []Command {
	return append([]Command(nil), d.log...)
}

// Count returns how many logged commands have op.
func (d *Device) Count(op Op) int {
	n := 0
	for _, c := range d.log {
		if c.Op == op {
			n++
		}
	}
	return n
}

// CountFor returns how many logged commands have op and write img.
func (d *Device) CountFor(op Op, img gpucore.ImageHandle) int {
	n := 0
	for _, c := range d.log {
		if c.Op == op && (c.Image == img || c.Barrier.Image == img && op == OpBarrier) {
			n++
		}
	}
	return n
}

// ResetLog clears the command log.
func (d *Device) ResetLog() { d.log = d.log[:0] }

func (d *Device) record(c Command) { d.log = append(d.log, c) }
