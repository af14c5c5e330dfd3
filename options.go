package glvk

import (
	"log/slog"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// Option configures a Context during creation.
// Use functional options to customize Context behavior.
//
// Example:
//
//	// Device defaults
//	ctx, err := glvk.NewContext(dev)
//
//	// Force the CPU mipmap path
//	f := dev.Features()
//	f.GenerateMipmapWithCompute = false
//	ctx, err := glvk.NewContext(dev, glvk.WithFeatures(f))
type Option func(*contextOptions)

// contextOptions holds optional configuration for Context creation.
type contextOptions struct {
	features       *gpucore.Features
	table          *format.Table
	pruneThreshold uint64
	viewCacheLimit int
	workers        int
	logger         *slog.Logger
}

// defaultOptions returns the default context options.
func defaultOptions() contextOptions {
	return contextOptions{
		features: nil, // Device.Features() is used if nil
		table:    nil, // format.DefaultTable() is used if nil
	}
}

// WithFeatures overrides the capabilities reported by the device.
// Decisions about fallback paths are taken from f; the device must still
// be able to execute what f claims.
//
// Example:
//
//	f := dev.Features()
//	f.SupportsMultisampledRenderToSingleSampled = false
//	ctx, err := glvk.NewContext(dev, glvk.WithFeatures(f))
func WithFeatures(f gpucore.Features) Option {
	return func(o *contextOptions) {
		o.features = &f
	}
}

// WithFormatTable replaces the intended to actual format table.
func WithFormatTable(t *format.Table) Option {
	return func(o *contextOptions) {
		o.table = t
	}
}

// WithPruneThreshold sets the staged buffer size of one level above which
// superseded updates are dropped. Zero keeps the default of 64 KiB.
func WithPruneThreshold(bytes uint64) Option {
	return func(o *contextOptions) {
		o.pruneThreshold = bytes
	}
}

// WithViewCacheLimit sets how many views each texture keeps before
// evicting the least recently used one.
func WithViewCacheLimit(n int) Option {
	return func(o *contextOptions) {
		o.viewCacheLimit = n
	}
}

// WithWorkers sets the number of goroutines used for CPU format
// conversion and CPU mipmap generation. Zero uses GOMAXPROCS; one keeps
// all CPU work on the calling goroutine.
//
// Example:
//
//	ctx, err := glvk.NewContext(dev, glvk.WithWorkers(1))
func WithWorkers(n int) Option {
	return func(o *contextOptions) {
		o.workers = n
	}
}

// WithLogger sets a logger for this context only. The context then no
// longer follows SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *contextOptions) {
		o.logger = l
	}
}
