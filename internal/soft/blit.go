package soft

import (
	stdimage "image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/glvk/format"
	"github.com/gogpu/glvk/gpucore"
)

// span normalizes a corner pair to [lo, hi) and reports whether it was
// reversed.
func span(a, b int32) (lo, hi int, flip bool) {
	if a > b {
		return int(b), int(a), true
	}
	return int(a), int(b), false
}

// scalable reports whether texels of info fit 16-bit unorm channels, the
// precision of the x/image scaling path.
func scalable(info *format.Info) bool {
	if info.Kind != format.KindUnorm || info.Compressed || info.HasDepthOrStencil() {
		return false
	}
	for _, c := range info.Channels {
		if c.Bits > 16 {
			return false
		}
	}
	return true
}

// blit scales one layer region of src into dst. Reversed corner pairs
// mirror the copy. Depth slices are picked by nearest neighbor.
func blit(si *image, sl, slayer uint32, so [2]gpucore.Offset3D, di *image, dl, dlayer uint32, do [2]gpucore.Offset3D, filter gpucore.Filter) {
	sx0, sx1, sfx := span(so[0].X, so[1].X)
	sy0, sy1, sfy := span(so[0].Y, so[1].Y)
	sz0, sz1, _ := span(so[0].Z, so[1].Z)
	dx0, dx1, dfx := span(do[0].X, do[1].X)
	dy0, dy1, dfy := span(do[0].Y, do[1].Y)
	dz0, dz1, _ := span(do[0].Z, do[1].Z)
	sw, sh, sd := sx1-sx0, sy1-sy0, max(sz1-sz0, 1)
	dw, dh, dd := dx1-dx0, dy1-dy0, max(dz1-dz0, 1)
	if sw <= 0 || sh <= 0 || dw <= 0 || dh <= 0 {
		return
	}
	flipX, flipY := sfx != dfx, sfy != dfy

	sInfo, dInfo := si.info(), di.info()
	for z := range dd {
		srcZ := sz0 + (2*z+1)*sd/(2*dd)
		scaled := make([]format.Color, dw*dh)
		if scalable(sInfo) && scalable(dInfo) {
			scaleSlice(si, sl, slayer, srcZ, sx0, sy0, sw, sh, dw, dh, filter, scaled)
		} else {
			sampleSlice(si, sl, slayer, srcZ, sx0, sy0, sw, sh, dw, dh, filter, scaled)
		}
		for y := range dh {
			ty := y
			if flipY {
				ty = dh - 1 - y
			}
			for x := range dw {
				tx := x
				if flipX {
					tx = dw - 1 - x
				}
				off := di.texelOffset(dl, dlayer, 0, dx0+tx, dy0+ty, dz0+z)
				dInfo.Encode(scaled[y*dw+x], di.levels[dl][off:])
			}
		}
	}
}

// scaleSlice scales through x/image/draw on 16-bit channels.
func scaleSlice(si *image, level, layer uint32, z, x0, y0, sw, sh, dw, dh int, filter gpucore.Filter, out []format.Color) {
	info := si.info()
	src := stdimage.NewRGBA64(stdimage.Rect(0, 0, sw, sh))
	for y := range sh {
		for x := range sw {
			c := info.Decode(si.levels[level][si.texelOffset(level, layer, 0, x0+x, y0+y, z):])
			src.SetRGBA64(x, y, color.RGBA64{R: to16(c[0]), G: to16(c[1]), B: to16(c[2]), A: to16(c[3])})
		}
	}
	dst := stdimage.NewRGBA64(stdimage.Rect(0, 0, dw, dh))
	var interp xdraw.Interpolator = xdraw.NearestNeighbor
	if filter == gpucore.FilterLinear {
		interp = xdraw.ApproxBiLinear
	}
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	for y := range dh {
		for x := range dw {
			p := dst.RGBA64At(x, y)
			out[y*dw+x] = format.Color{from16(p.R), from16(p.G), from16(p.B), from16(p.A)}
		}
	}
}

func to16(v float64) uint16 { return uint16(math.Round(min(max(v, 0), 1) * 0xffff)) }

func from16(v uint16) float64 { return float64(v) / 0xffff }

// sampleSlice samples decoded texels directly, for formats the RGBA64
// path would lose precision on.
func sampleSlice(si *image, level, layer uint32, z, x0, y0, sw, sh, dw, dh int, filter gpucore.Filter, out []format.Color) {
	info := si.info()
	texel := func(x, y int) format.Color {
		x = min(max(x, 0), sw-1)
		y = min(max(y, 0), sh-1)
		return info.Decode(si.levels[level][si.texelOffset(level, layer, 0, x0+x, y0+y, z):])
	}
	linear := filter == gpucore.FilterLinear && !info.IsInt() && !info.HasDepthOrStencil()
	for y := range dh {
		v := (float64(y)+0.5)*float64(sh)/float64(dh) - 0.5
		for x := range dw {
			u := (float64(x)+0.5)*float64(sw)/float64(dw) - 0.5
			if !linear {
				out[y*dw+x] = texel(int(math.Floor(u+0.5)), int(math.Floor(v+0.5)))
				continue
			}
			fx, fy := math.Floor(u), math.Floor(v)
			ax, ay := u-fx, v-fy
			ix, iy := int(fx), int(fy)
			c00, c10 := texel(ix, iy), texel(ix+1, iy)
			c01, c11 := texel(ix, iy+1), texel(ix+1, iy+1)
			var c format.Color
			for i := range c {
				top := c00[i]*(1-ax) + c10[i]*ax
				bot := c01[i]*(1-ax) + c11[i]*ax
				c[i] = top*(1-ay) + bot*ay
			}
			out[y*dw+x] = c
		}
	}
}
