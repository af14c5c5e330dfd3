package view

import "errors"

// View errors.
var (
	// ErrNoImage is returned when a view is requested from a storage
	// without an image.
	ErrNoImage = errors.New("view: storage has no image")

	// ErrMissingUsage is returned when the image was created without the
	// usage the view class needs.
	ErrMissingUsage = errors.New("view: image lacks usage for view")

	// ErrNoAspect is returned for depth or stencil views of an image
	// without that aspect.
	ErrNoAspect = errors.New("view: image lacks aspect")
)
