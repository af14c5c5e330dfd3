package native

import "errors"

// Package errors for the HAL device.
var (
	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("native: device closed")

	// ErrUnsupportedFormat is returned for formats without a HAL texture
	// format.
	ErrUnsupportedFormat = errors.New("native: format has no HAL equivalent")

	// ErrExternalMemory is returned by ImportImage. The HAL has no memory
	// import.
	ErrExternalMemory = errors.New("native: external memory import not supported")

	// ErrGPUTimeout is returned when a fence wait does not complete.
	ErrGPUTimeout = errors.New("native: timed out waiting for the GPU")

	// ErrNoProvider is returned when a provider does not expose HAL types.
	ErrNoProvider = errors.New("native: provider does not expose HAL device and queue")
)
