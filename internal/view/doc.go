// Package view caches the image views a texture hands out.
//
// Views are created lazily, keyed by their class (read, fetch, copy,
// storage, draw, depth or stencil only), the native subresource range, the
// swizzle and the colorspace state in effect. A Cache follows one image:
// binding a Storage whose serial differs from the last one drops every view,
// and so does Release when the image is replaced.
//
//	views := view.New(dev, 64)
//	views.Bind(storage)
//	h, err := views.Read(storage, base, max, format.Identity)
//
// Changing the colorspace state only drops the views whose format depends
// on it.
package view
