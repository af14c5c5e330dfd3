package format

import (
	"encoding/binary"
	"math"
)

// Color is a decoded texel. Color formats use R, G, B, A; depth/stencil
// formats store depth in [0] and stencil in [1]. Integer formats hold
// exact integer values.
type Color [4]float64

// Decode reads one texel of format f from src.
//
// Luminance expands to R=G=B, missing color components read as 0 and a
// missing alpha reads as 1. YUV texels are converted to RGB.
func (f *Info) Decode(src []byte) Color {
	var c Color
	if f.IsColor() {
		c[3] = 1
	}
	off := 0
	for _, chn := range f.Channels {
		n := chn.Bits / 8
		kind := f.Kind
		if chn.Kind != 0 {
			kind = chn.Kind
		}
		v := readComponent(src[off:off+n], chn.Bits, kind)
		off += n
		switch chn.Channel {
		case ChannelR, ChannelY:
			c[0] = v
		case ChannelG, ChannelCb:
			c[1] = v
		case ChannelB, ChannelCr:
			c[2] = v
		case ChannelA:
			c[3] = v
		case ChannelL:
			c[0], c[1], c[2] = v, v, v
		case ChannelD:
			c[0] = v
		case ChannelS:
			c[1] = v
		}
	}
	if f.YUV {
		c = yuvToRGB(c)
	}
	return c
}

// Encode writes c as one texel of format f into dst.
func (f *Info) Encode(c Color, dst []byte) {
	if f.YUV {
		c = rgbToYUV(c)
	}
	off := 0
	for _, chn := range f.Channels {
		n := chn.Bits / 8
		kind := f.Kind
		if chn.Kind != 0 {
			kind = chn.Kind
		}
		var v float64
		switch chn.Channel {
		case ChannelR, ChannelY, ChannelL, ChannelD:
			v = c[0]
		case ChannelG, ChannelCb, ChannelS:
			v = c[1]
		case ChannelB, ChannelCr:
			v = c[2]
		case ChannelA:
			v = c[3]
		case ChannelX:
			v = 0
		}
		writeComponent(dst[off:off+n], chn.Bits, kind, v)
		off += n
	}
}

func readComponent(b []byte, bits int, kind Kind) float64 {
	raw := readUint(b)
	switch kind {
	case KindUnorm:
		return float64(raw) / float64(maxUint(bits))
	case KindSnorm:
		v := signExtend(raw, bits)
		return math.Max(-1, float64(v)/float64(maxUint(bits-1)))
	case KindUint:
		return float64(raw)
	case KindSint:
		return float64(signExtend(raw, bits))
	case KindFloat:
		switch bits {
		case 16:
			return float64(halfToFloat(uint16(raw)))
		case 32:
			return float64(math.Float32frombits(uint32(raw)))
		}
	}
	return 0
}

func writeComponent(b []byte, bits int, kind Kind, v float64) {
	var raw uint64
	switch kind {
	case KindUnorm:
		m := float64(maxUint(bits))
		raw = uint64(math.Round(clamp(v, 0, 1) * m))
	case KindSnorm:
		m := float64(maxUint(bits - 1))
		raw = uint64(int64(math.Round(clamp(v, -1, 1)*m))) & maxUint(bits)
	case KindUint:
		raw = uint64(clamp(math.Round(v), 0, float64(maxUint(bits))))
	case KindSint:
		lim := float64(maxUint(bits - 1))
		raw = uint64(int64(clamp(math.Round(v), -lim-1, lim))) & maxUint(bits)
	case KindFloat:
		switch bits {
		case 16:
			raw = uint64(floatToHalf(float32(v)))
		case 32:
			raw = uint64(math.Float32bits(float32(v)))
		}
	}
	writeUint(b, raw)
}

func readUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func writeUint(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
}

func maxUint(bits int) uint64 { return 1<<uint(bits) - 1 }

func signExtend(raw uint64, bits int) int64 {
	shift := 64 - uint(bits)
	return int64(raw<<shift) >> shift
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// halfToFloat converts an IEEE 754 binary16 value.
func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) & 1
	exp := int32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff
	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign << 31)
	case exp == 0:
		// Subnormal.
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3ff
	case exp == 0x1f:
		return math.Float32frombits(sign<<31 | 0xff<<23 | mant<<13)
	}
	return math.Float32frombits(sign<<31 | uint32(exp+112)<<23 | mant<<13)
}

func floatToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xff) - 127 + 15
	mant := bits & 0x7fffff
	switch {
	case bits&0x7fffffff == 0:
		return sign
	case bits>>23&0xff == 0xff:
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp >= 0x1f:
		return sign | 0x7c00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := uint16(mant >> shift)
		if mant>>(shift-1)&1 != 0 {
			half++
		}
		return sign | half
	}
	half := sign | uint16(exp)<<10 | uint16(mant>>13)
	if mant&0x1000 != 0 {
		half++
	}
	return half
}

// BT.601 full range.
func yuvToRGB(c Color) Color {
	y, cb, cr := c[0], c[1]-0.5, c[2]-0.5
	return Color{
		clamp(y+1.402*cr, 0, 1),
		clamp(y-0.344136*cb-0.714136*cr, 0, 1),
		clamp(y+1.772*cb, 0, 1),
		1,
	}
}

func rgbToYUV(c Color) Color {
	r, g, b := c[0], c[1], c[2]
	y := 0.299*r + 0.587*g + 0.114*b
	return Color{
		y,
		clamp(0.5+(b-y)/1.772, 0, 1),
		clamp(0.5+(r-y)/1.402, 0, 1),
		1,
	}
}
