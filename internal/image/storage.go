package image

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/layout"
)

// DefaultPruneThreshold is the staged buffer size of one level above which
// superseded updates are pruned.
const DefaultPruneThreshold = 64 << 10

// serials hands out identity tokens. Siblings sharing a Storage compare
// tokens to detect a replaced image.
var serials atomic.Uint64

// Options configures a Storage.
type Options struct {
	// PruneThreshold overrides DefaultPruneThreshold when non-zero.
	PruneThreshold uint64
	// Runner parallelizes CPU conversions. May be nil.
	Runner format.RowRunner
	// Logger receives diagnostics. Nil means silent.
	Logger *slog.Logger
}

// Desc describes the image a Storage allocates.
type Desc struct {
	Label    string
	Type     gpucore.ImageType
	Fallback format.Fallback
	// Extent is the size of native level 0.
	Extent gpucore.Extent3D
	// FirstLevel is the client level stored at native level 0.
	FirstLevel GLLevel
	Levels     uint32
	Layers     uint32
	Samples    uint32
	Usage      gpucore.ImageUsage
	Flags      gpucore.ImageCreateFlags
}

// Storage is the image storage object. The zero value is not usable; use
// New. A Storage without an image is invalid but can still stage updates.
//
// Storage is not safe for concurrent use.
type Storage struct {
	dev    gpucore.Device
	handle gpucore.ImageHandle
	serial uint64

	imageType           gpucore.ImageType
	extent              gpucore.Extent3D
	levels              uint32
	layers              uint32
	samples             uint32
	usage               gpucore.ImageUsage
	flags               gpucore.ImageCreateFlags
	firstAllocatedLevel GLLevel
	fallback            format.Fallback

	currentLayout   layout.ImageLayout
	readStages      gpucore.PipelineStage
	lastWriteLayout layout.ImageLayout
	queueFamily     gpucore.QueueFamily
	external        bool
	released        bool

	// written holds, per native level, the layers written since the last
	// barrier, hashed by layer % 64.
	written [MaxLevels]uint64
	// content holds, per native level, the first 8 layers with defined
	// contents.
	content        [MaxLevels]uint8
	stencilContent [MaxLevels]uint8

	updates           [MaxLevels][]Update
	stagedBufferBytes [MaxLevels]uint64
	pruneThreshold    uint64

	runner format.RowRunner
	log    *slog.Logger
}

// New returns an invalid Storage bound to dev.
func New(dev gpucore.Device, opts Options) *Storage {
	s := &Storage{
		dev:            dev,
		pruneThreshold: opts.PruneThreshold,
		runner:         opts.Runner,
		log:            opts.Logger,
	}
	if s.pruneThreshold == 0 {
		s.pruneThreshold = DefaultPruneThreshold
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	return s
}

// Init allocates the image described by desc.
//
// Emulated components of the actual format are staged to be cleared once
// before any other update of each level. With ZeroInitializeAllocations
// the whole image is cleared immediately instead.
func (s *Storage) Init(desc *Desc) error {
	if s.Valid() {
		panic("image: Init on a storage that already has an image")
	}
	h, err := s.dev.CreateImage(s.imageDesc(desc))
	if err != nil {
		return fmt.Errorf("image: create %q: %w", desc.Label, err)
	}
	s.adopt(h, desc)
	s.currentLayout = layout.Undefined
	s.queueFamily = LocalQueueFamily

	s.log.Debug("image allocated",
		"label", desc.Label, "handle", h, "format", s.fallback.Actual,
		"width", desc.Extent.Width, "height", desc.Extent.Height,
		"levels", s.levels, "layers", s.layers)

	if s.dev.Features().ZeroInitializeAllocations {
		return s.clearAllocation()
	}
	s.stageClearIfEmulatedFormat()
	return nil
}

func (s *Storage) imageDesc(desc *Desc) *gpucore.ImageDesc {
	samples := desc.Samples
	if samples == 0 {
		samples = 1
	}
	return &gpucore.ImageDesc{
		Label:   desc.Label,
		Type:    desc.Type,
		Format:  desc.Fallback.Actual,
		Extent:  desc.Extent,
		Levels:  desc.Levels,
		Layers:  desc.Layers,
		Samples: samples,
		Usage:   desc.Usage,
		Flags:   desc.Flags,
	}
}

func (s *Storage) adopt(h gpucore.ImageHandle, desc *Desc) {
	if desc.Levels == 0 || desc.Levels > MaxLevels {
		panic(fmt.Sprintf("image: %d levels", desc.Levels))
	}
	s.handle = h
	s.serial = serials.Add(1)
	s.imageType = desc.Type
	s.extent = desc.Extent
	s.levels = desc.Levels
	s.layers = max(desc.Layers, 1)
	s.samples = max(desc.Samples, 1)
	s.usage = desc.Usage
	s.flags = desc.Flags
	s.firstAllocatedLevel = desc.FirstLevel
	s.fallback = desc.Fallback
	s.readStages = 0
	s.lastWriteLayout = layout.Undefined
	s.released = false
	s.written = [MaxLevels]uint64{}
	s.content = [MaxLevels]uint8{}
	s.stencilContent = [MaxLevels]uint8{}
}

// clearAllocation records a clear of every subresource to zero with
// emulated components set to their defaults.
func (s *Storage) clearAllocation() error {
	r := s.fullRange()
	var acc gpucore.Access
	acc.OnImageTransferWrite(s.handle, r)
	cmd, err := s.dev.OutsideRenderPassCommandBuffer(&acc)
	if err != nil {
		return err
	}
	s.RecordWriteBarrier(cmd, r.Aspect, layout.TransferDst, 0, s.levels, 0, s.layers)
	c := s.fallback.EmulatedDefault()
	if r.Aspect == gpucore.AspectColor {
		cmd.ClearColorImage(s.handle, gpucore.LayoutTransferDstOptimal, c, r)
	} else {
		cmd.ClearDepthStencilImage(s.handle, gpucore.LayoutTransferDstOptimal, c[0], uint32(c[1]), r)
	}
	return nil
}

// Release destroys the image. Staged updates are kept so a later Init can
// flush them.
func (s *Storage) Release() {
	if !s.Valid() {
		return
	}
	s.log.Debug("image released", "handle", s.handle)
	s.dev.DestroyImage(s.handle)
	s.forget()
}

// forget drops the image without destroying it.
func (s *Storage) forget() {
	s.handle = gpucore.InvalidHandle
	s.currentLayout = layout.Undefined
	s.readStages = 0
	s.external = false
	s.released = false
	s.written = [MaxLevels]uint64{}
	s.content = [MaxLevels]uint8{}
	s.stencilContent = [MaxLevels]uint8{}
}

// Destroy releases the image and every staged update.
func (s *Storage) Destroy() {
	s.Release()
	s.ReleaseStagedUpdates()
}

// Valid reports whether the storage has an image.
func (s *Storage) Valid() bool { return s.handle != gpucore.InvalidHandle }

// Handle returns the native image handle.
func (s *Storage) Handle() gpucore.ImageHandle { return s.handle }

// Serial returns the identity token of the current image. It changes
// every time an image is allocated.
func (s *Storage) Serial() uint64 { return s.serial }

// Device returns the device the storage allocates from.
func (s *Storage) Device() gpucore.Device { return s.dev }

// Type returns the image type.
func (s *Storage) Type() gpucore.ImageType { return s.imageType }

// Extent returns the size of native level 0.
func (s *Storage) Extent() gpucore.Extent3D { return s.extent }

// LevelExtent returns the size of a native level.
func (s *Storage) LevelExtent(l VkLevel) gpucore.Extent3D {
	return gpucore.LevelExtent(s.extent, uint32(l))
}

// LevelCount returns the number of native levels.
func (s *Storage) LevelCount() uint32 { return s.levels }

// LayerCount returns the number of array layers.
func (s *Storage) LayerCount() uint32 { return s.layers }

// Samples returns the sample count.
func (s *Storage) Samples() uint32 { return s.samples }

// Usage returns the usage the image was created with.
func (s *Storage) Usage() gpucore.ImageUsage { return s.usage }

// Flags returns the creation flags of the image.
func (s *Storage) Flags() gpucore.ImageCreateFlags { return s.flags }

// Intended returns the format the client asked for.
func (s *Storage) Intended() format.ID { return s.fallback.Intended }

// Actual returns the stored format.
func (s *Storage) Actual() format.ID { return s.fallback.Actual }

// Fallback returns the intended to actual format mapping.
func (s *Storage) Fallback() format.Fallback { return s.fallback }

// Aspects returns the aspects of the actual format.
func (s *Storage) Aspects() gpucore.Aspect { return gpucore.AspectsOf(s.fallback.Actual) }

// HasEmulatedImageChannels reports whether the actual format has
// components the intended format lacks.
func (s *Storage) HasEmulatedImageChannels() bool { return s.fallback.EmulatedMask() != 0 }

// IsExternal reports whether the image was imported.
func (s *Storage) IsExternal() bool { return s.external }

// CurrentLayout returns the tracked layout.
func (s *Storage) CurrentLayout() layout.ImageLayout { return s.currentLayout }

// QueueFamily returns the queue family owning the image.
func (s *Storage) QueueFamily() gpucore.QueueFamily { return s.queueFamily }

// InUse reports whether submitted GPU work still references the image.
func (s *Storage) InUse() bool { return s.Valid() && s.dev.ImageInUse(s.handle) }

func (s *Storage) fullRange() gpucore.SubresourceRange {
	return gpucore.SubresourceRange{
		Aspect:     s.Aspects(),
		LevelCount: s.levels,
		LayerCount: s.layers,
	}
}

// LevelBox returns the box covering a whole native level.
func (s *Storage) LevelBox(l VkLevel) gpucore.Box {
	return gpucore.Box{Extent: s.LevelExtent(l)}
}
