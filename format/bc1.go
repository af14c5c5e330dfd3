package format

import "encoding/binary"

// DecompressBC1 decodes BC1 (DXT1) blocks into RGBA8 texels.
// width and height are in texels; src holds ceil(w/4)*ceil(h/4) blocks.
func DecompressBC1(dst []byte, dstRowPitch int, src []byte, width, height int) {
	blocksX := (width + 3) / 4
	blocksY := (height + 3) / 4
	var palette [4][4]byte
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			block := src[(by*blocksX+bx)*8:]
			c0 := binary.LittleEndian.Uint16(block[0:])
			c1 := binary.LittleEndian.Uint16(block[2:])
			indices := binary.LittleEndian.Uint32(block[4:])

			palette[0] = expand565(c0)
			palette[1] = expand565(c1)
			if c0 > c1 {
				for i := 0; i < 3; i++ {
					palette[2][i] = byte((2*int(palette[0][i]) + int(palette[1][i]) + 1) / 3)
					palette[3][i] = byte((int(palette[0][i]) + 2*int(palette[1][i]) + 1) / 3)
				}
				palette[2][3], palette[3][3] = 255, 255
			} else {
				for i := 0; i < 3; i++ {
					palette[2][i] = byte((int(palette[0][i]) + int(palette[1][i])) / 2)
					palette[3][i] = 0
				}
				palette[2][3], palette[3][3] = 255, 0
			}

			for py := 0; py < 4; py++ {
				y := by*4 + py
				if y >= height {
					break
				}
				for px := 0; px < 4; px++ {
					x := bx*4 + px
					if x >= width {
						break
					}
					idx := (indices >> (2 * uint(py*4+px))) & 3
					copy(dst[y*dstRowPitch+x*4:], palette[idx][:])
				}
			}
		}
	}
}

func expand565(c uint16) [4]byte {
	r := byte(c >> 11 & 0x1f)
	g := byte(c >> 5 & 0x3f)
	b := byte(c & 0x1f)
	return [4]byte{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2, 255}
}
