package format

// RowRunner splits a row range across workers. fn is called with
// disjoint half-open ranges covering [0, height) and RowRunner returns
// once every call has finished.
type RowRunner interface {
	Rows(height int, fn func(y0, y1 int))
}

// Converter moves texels between two formats on the CPU.
//
// Source texels are decoded, mapped to logical components with SrcLoad,
// optionally flipped and (un)premultiplied, mapped onto the destination
// components with DstStore, and encoded.
type Converter struct {
	Src     ID
	SrcLoad Swizzle
	Dst     ID
	// DstStore maps logical components onto Dst components. SwzOne and
	// SwzZero fill emulated components.
	DstStore Swizzle

	FlipY            bool
	PremultiplyAlpha bool
	UnmultiplyAlpha  bool

	// Runner parallelizes large conversions when set.
	Runner RowRunner
}

// NewConverter returns a converter with identity swizzles.
func NewConverter(src, dst ID) Converter {
	return Converter{Src: src, SrcLoad: Identity, Dst: dst, DstStore: Identity}
}

// Upload returns the converter that packs client data in format client
// into the storage described by fb.
func Upload(client ID, fb Fallback) Converter {
	return Converter{Src: client, SrcLoad: Identity, Dst: fb.Actual, DstStore: fb.Store}
}

// Readback returns the converter that reads storage described by fb back
// into client format client.
func Readback(fb Fallback, client ID) Converter {
	return Converter{Src: fb.Actual, SrcLoad: fb.Load, Dst: client, DstStore: Identity}
}

// RequiresConversion reports whether Rows would do anything beyond a
// byte copy.
func (cv Converter) RequiresConversion() bool {
	return cv.Src != cv.Dst || cv.SrcLoad != Identity || cv.DstStore != Identity ||
		cv.PremultiplyAlpha != cv.UnmultiplyAlpha
}

// parallelRowThreshold is the row count below which Rows stays on the
// calling goroutine.
const parallelRowThreshold = 64

// Rows converts a width x height region. Pitches are in bytes.
func (cv Converter) Rows(dst []byte, dstPitch int, src []byte, srcPitch int, width, height int) {
	si, di := Get(cv.Src), Get(cv.Dst)
	if si.Compressed || di.Compressed {
		panic("format: Converter does not handle compressed formats")
	}
	work := func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			sy := y
			if cv.FlipY {
				sy = height - 1 - y
			}
			srow := src[sy*srcPitch:]
			drow := dst[y*dstPitch:]
			if !cv.RequiresConversion() {
				copy(drow[:width*di.PixelBytes], srow[:width*si.PixelBytes])
				continue
			}
			for x := 0; x < width; x++ {
				c := si.Decode(srow[x*si.PixelBytes:])
				c = cv.SrcLoad.Apply(c)
				switch {
				case cv.PremultiplyAlpha && !cv.UnmultiplyAlpha:
					c[0], c[1], c[2] = c[0]*c[3], c[1]*c[3], c[2]*c[3]
				case cv.UnmultiplyAlpha && !cv.PremultiplyAlpha && c[3] > 0:
					c[0], c[1], c[2] = c[0]/c[3], c[1]/c[3], c[2]/c[3]
				}
				di.Encode(cv.DstStore.Apply(c), drow[x*di.PixelBytes:])
			}
		}
	}
	if cv.Runner != nil && height >= parallelRowThreshold {
		cv.Runner.Rows(height, work)
		return
	}
	work(0, height)
}

// Fill writes c (a Dst texel) into every texel of a width x height region.
func Fill(dst []byte, dstPitch int, id ID, c Color, width, height int) {
	info := Get(id)
	texel := make([]byte, info.PixelBytes)
	info.Encode(c, texel)
	for y := 0; y < height; y++ {
		row := dst[y*dstPitch:]
		for x := 0; x < width; x++ {
			copy(row[x*info.PixelBytes:], texel)
		}
	}
}

// FillMasked overwrites only the components in mask (bit i for
// component i) of every texel with the matching component of c.
func FillMasked(dst []byte, dstPitch int, id ID, c Color, mask uint8, width, height int) {
	info := Get(id)
	for y := 0; y < height; y++ {
		row := dst[y*dstPitch:]
		for x := 0; x < width; x++ {
			texel := row[x*info.PixelBytes : (x+1)*info.PixelBytes]
			old := info.Decode(texel)
			for i := range old {
				if mask&(1<<i) != 0 {
					old[i] = c[i]
				}
			}
			info.Encode(old, texel)
		}
	}
}
