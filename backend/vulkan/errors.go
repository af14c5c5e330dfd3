package vulkan

import "errors"

// Recorder errors.
var (
	// ErrUnboundImage is recorded when a command names an image handle
	// that was never bound.
	ErrUnboundImage = errors.New("vulkan: image handle not bound")

	// ErrUnboundBuffer is recorded when a command names an unbound buffer.
	ErrUnboundBuffer = errors.New("vulkan: buffer handle not bound")

	// ErrUnmappedFormat is returned for a format with no VkFormat.
	ErrUnmappedFormat = errors.New("vulkan: format has no VkFormat")
)
