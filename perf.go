package glvk

import (
	"context"
	"log/slog"
)

// PerfCounters counts the slow paths a context has taken.
type PerfCounters struct {
	// CPUCopies counts copies converted on the host.
	CPUCopies uint64
	// CPUMipmaps counts mipmap generations run on the host.
	CPUMipmaps uint64
	// GPUStalls counts waits for the GPU to finish.
	GPUStalls uint64
	// BufferCPUUnpacks counts unpack buffer uploads mapped on the host.
	BufferCPUUnpacks uint64
	// Respecifications counts images recreated with new parameters.
	Respecifications uint64
	// Ghosts counts images replaced instead of waited on.
	Ghosts uint64
}

// perfWarning logs a slow path at warn level and bumps its counter.
func (c *Context) perfWarning(counter *uint64, msg string, args ...any) {
	*counter++
	if c.log.Enabled(context.Background(), slog.LevelWarn) {
		c.log.Warn(msg, args...)
	}
}

// stall waits for the GPU and counts it.
func (c *Context) stall(reason string) error {
	c.perfWarning(&c.perf.GPUStalls, "GPU stall due to "+reason)
	return c.dev.Finish(reason)
}
