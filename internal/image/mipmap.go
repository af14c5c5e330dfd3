package image

import (
	"math"

	"github.com/gogpu/glvk/format"
)

// MipLevel is one level of a CPU-generated mip chain, tightly packed.
type MipLevel struct {
	Width, Height, Depth int
	Data                 []byte
}

// GenerateMipmaps builds levels below base with a box filter until count
// levels exist or the chain reaches 1x1x1. The returned slice starts with
// base and shares its data.
//
// Every level averages 2x2 (2x2x2 for 3D) texels of the previous one.
// Odd sizes reuse the last row or column. Integer formats truncate the
// average.
func GenerateMipmaps(id format.ID, base MipLevel, count int) []MipLevel {
	info := format.Get(id)
	if info.Compressed {
		panic("image: GenerateMipmaps on a compressed format")
	}
	full := 1 + int(math.Floor(math.Log2(float64(max(base.Width, base.Height, base.Depth, 1)))))
	if count <= 0 || count > full {
		count = full
	}
	chain := make([]MipLevel, 1, count)
	chain[0] = base
	for i := 1; i < count; i++ {
		chain = append(chain, Downsample(info, chain[i-1]))
	}
	return chain
}

// Downsample returns src reduced to half its size with a box filter.
func Downsample(info *format.Info, src MipLevel) MipLevel {
	srcW, srcH, srcD := src.Width, src.Height, max(src.Depth, 1)
	dstW, dstH, dstD := max(1, srcW/2), max(1, srcH/2), max(1, srcD/2)
	bpp := info.PixelBytes
	srcPitch, srcSlice := srcW*bpp, srcW*srcH*bpp

	dst := MipLevel{Width: dstW, Height: dstH, Depth: dstD, Data: make([]byte, dstW*dstH*dstD*bpp)}
	texel := func(x, y, z int) format.Color {
		return info.Decode(src.Data[z*srcSlice+y*srcPitch+x*bpp:])
	}

	zs := 2
	if srcD == 1 {
		zs = 1
	}
	for dz := range dstD {
		for dy := range dstH {
			for dx := range dstW {
				sx, sy, sz := dx*2, dy*2, dz*2
				// Sample the 2x2(x2) region, clamping odd dimensions.
				var sum format.Color
				n := 0
				for k := range zs {
					z := min(sz+k, srcD-1)
					for _, y := range [2]int{sy, min(sy+1, srcH-1)} {
						for _, x := range [2]int{sx, min(sx+1, srcW-1)} {
							c := texel(x, y, z)
							for i := range sum {
								sum[i] += c[i]
							}
							n++
						}
					}
				}
				for i := range sum {
					sum[i] /= float64(n)
					if info.IsInt() {
						sum[i] = math.Trunc(sum[i])
					}
				}
				info.Encode(sum, dst.Data[(dz*dstH*dstW+dy*dstW+dx)*bpp:])
			}
		}
	}
	return dst
}
