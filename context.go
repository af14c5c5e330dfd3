package glvk

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
	"github.com/gogpu/glvk/internal/image"
	"github.com/gogpu/glvk/internal/parallel"
)

// Context owns the textures recorded against one device.
// Context implements io.Closer for proper resource cleanup.
//
// A Context is not safe for concurrent use. Textures of one context
// record into the device in call order.
type Context struct {
	dev      gpucore.Device
	features gpucore.Features
	table    *format.Table
	opts     contextOptions

	pool   *parallel.WorkerPool
	runner format.RowRunner

	log        *slog.Logger
	ownsLogger bool

	perf PerfCounters

	// tail holds flushes deferred until the caller lets go of the API.
	tail []func() error

	incomplete map[TextureType]*Texture

	closed bool
}

// Ensure Context implements io.Closer
var _ io.Closer = (*Context)(nil)

// NewContext creates a context recording into dev.
//
//	dev := soft.NewDefault()
//	ctx, err := glvk.NewContext(dev, glvk.WithWorkers(4))
func NewContext(dev gpucore.Device, opts ...Option) (*Context, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: nil device", ErrUnsupportedDevice)
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	c := &Context{
		dev:        dev,
		features:   dev.Features(),
		table:      options.table,
		opts:       options,
		incomplete: make(map[TextureType]*Texture),
	}
	if options.features != nil {
		c.features = *options.features
	}
	if c.features.Formats == nil {
		return nil, fmt.Errorf("%w: device reports no format support", ErrUnsupportedDevice)
	}
	if c.table == nil {
		c.table = format.DefaultTable()
	}
	if options.workers != 1 {
		c.pool = parallel.NewWorkerPool(options.workers)
		c.runner = c.pool
	}

	if options.logger != nil {
		c.log = options.logger
		c.ownsLogger = true
		propagateLogger(dev, c.log)
	} else {
		c.log = Logger()
		propagateLogger(dev, c.log)
		track(c)
	}
	c.log.Debug("context created", "device", fmt.Sprintf("%T", dev),
		"msrtss", c.features.SupportsMultisampledRenderToSingleSampled,
		"computeMipmap", c.features.GenerateMipmapWithCompute,
		"zeroInit", c.features.ZeroInitializeAllocations)
	return c, nil
}

func (c *Context) setLogger(l *slog.Logger) {
	if c.ownsLogger {
		return
	}
	c.log = l
	propagateLogger(c.dev, l)
}

// Device returns the device the context records into.
func (c *Context) Device() gpucore.Device { return c.dev }

// Features returns the capabilities decisions are based on.
func (c *Context) Features() gpucore.Features { return c.features }

// FormatTable returns the intended to actual format table.
func (c *Context) FormatTable() *format.Table { return c.table }

// Logger returns the logger of the context.
func (c *Context) Logger() *slog.Logger { return c.log }

// PerfCounters returns the slow paths taken so far.
func (c *Context) PerfCounters() PerfCounters { return c.perf }

// newStorage returns an empty image storage configured for c.
func (c *Context) newStorage() *image.Storage {
	return image.New(c.dev, image.Options{
		PruneThreshold: c.opts.pruneThreshold,
		Runner:         c.runner,
		Logger:         c.log,
	})
}

// queueTailCall defers fn until the next RunTailCalls.
func (c *Context) queueTailCall(fn func() error) {
	c.tail = append(c.tail, fn)
}

// PendingTailCalls returns the number of deferred flushes.
func (c *Context) PendingTailCalls() int { return len(c.tail) }

// RunTailCalls runs the flushes deferred by texture updates. Texture
// operations run them first, so calling it is only needed before handing
// recorded work to the device outside of glvk.
func (c *Context) RunTailCalls() error {
	var errs []error
	for len(c.tail) > 0 {
		fn := c.tail[0]
		c.tail = c.tail[1:]
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.tail = nil
	return errors.Join(errs...)
}

// NewTexture creates a texture with no image.
func (c *Context) NewTexture(typ TextureType, label string) *Texture {
	return newTexture(c, typ, label)
}

// IncompleteTexture returns the texture sampled in place of an
// incomplete one: a single black texel, opaque for color types.
func (c *Context) IncompleteTexture(typ TextureType) (*Texture, error) {
	if c.closed {
		return nil, ErrContextClosed
	}
	if t, ok := c.incomplete[typ]; ok {
		return t, nil
	}
	t := newTexture(c, typ, "incomplete-"+typ.String())
	t.incomplete = true

	size := gpucore.Extent3D{Width: 1, Height: 1, Depth: 1}
	black := HostPixels{0, 0, 0, 0xff}
	var err error
	switch typ {
	case TextureCube:
		for face := range uint32(6) {
			if err = t.SetImage(FaceIndex(0, face), size, format.RGBA8Unorm, Unpack{}, black); err != nil {
				break
			}
		}
	case Texture2DMultisample, Texture2DMultisampleArray:
		err = t.SetStorageMultisample(1, format.RGBA8Unorm, size)
		if err == nil {
			t.image.StageClear(0, 0, t.image.LayerCount(), gpucore.AspectColor,
				image.ClearValue{Color: format.Color{0, 0, 0, 1}})
		}
	default:
		err = t.SetImage(LevelIndex(0), size, format.RGBA8Unorm, Unpack{}, black)
	}
	if err == nil {
		err = t.ensureImageInitialized(enabledLevels)
	}
	if err != nil {
		t.Destroy()
		return nil, fmt.Errorf("glvk: incomplete %v texture: %w", typ, err)
	}
	c.incomplete[typ] = t
	return t, nil
}

// Close runs pending tail calls and releases the incomplete textures.
// Textures created by the context must be destroyed by the caller.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	err := c.RunTailCalls()
	for _, t := range c.incomplete {
		t.Destroy()
	}
	c.incomplete = nil
	if c.pool != nil {
		c.pool.Close()
	}
	untrack(c)
	c.closed = true
	return err
}
