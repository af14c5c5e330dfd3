package image

import "errors"

// Storage errors.
var (
	// ErrInvalidStorage is returned when an operation needs an allocated
	// image and the storage has none.
	ErrInvalidStorage = errors.New("image: storage has no image")

	// ErrConversionUnsupported is returned when texels cannot be converted
	// on the CPU between the requested formats.
	ErrConversionUnsupported = errors.New("image: conversion not supported")
)
