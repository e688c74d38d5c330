// Package render draws the creature on the device display. A fixed-rate
// loop reads one pet snapshot per frame, picks a frame sequence from the
// catalog, composites status overlays on top and presents the result.
// The loop only ever reads snapshots; it never touches the network, the
// camera or the pet machine's lock beyond the snapshot copy.
package render

import (
	"strings"
)

// Bitmap is a 1-bit-per-pixel image, row major with each row padded to a
// whole byte, most significant bit first. This is the packing the display
// drivers consume directly.
type Bitmap struct {
	W, H int
	bits []byte
}

// NewBitmap allocates a cleared w by h bitmap.
func NewBitmap(w, h int) *Bitmap {
	return &Bitmap{W: w, H: h, bits: make([]byte, ((w+7)/8)*h)}
}

func (b *Bitmap) stride() int { return (b.W + 7) / 8 }

// Set turns the pixel at (x, y) on or off. Out-of-bounds writes are
// dropped so drawing helpers can run partially off screen.
func (b *Bitmap) Set(x, y int, on bool) {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return
	}
	idx := y*b.stride() + x/8
	mask := byte(1) << (7 - uint(x)%8)
	if on {
		b.bits[idx] |= mask
	} else {
		b.bits[idx] &^= mask
	}
}

// At reports whether the pixel at (x, y) is on. Out-of-bounds reads are
// off.
func (b *Bitmap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return false
	}
	return b.bits[y*b.stride()+x/8]&(byte(1)<<(7-uint(x)%8)) != 0
}

// Clear turns every pixel off.
func (b *Bitmap) Clear() {
	for i := range b.bits {
		b.bits[i] = 0
	}
}

// Fill turns on the w by h region at (x, y).
func (b *Bitmap) Fill(x, y, w, h int) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			b.Set(x+dx, y+dy, true)
		}
	}
}

// Rect draws the outline of the w by h region at (x, y).
func (b *Bitmap) Rect(x, y, w, h int) {
	b.HLine(x, y, w)
	b.HLine(x, y+h-1, w)
	b.VLine(x, y, h)
	b.VLine(x+w-1, y, h)
}

// HLine draws a horizontal run of w pixels starting at (x, y).
func (b *Bitmap) HLine(x, y, w int) {
	for dx := 0; dx < w; dx++ {
		b.Set(x+dx, y, true)
	}
}

// VLine draws a vertical run of h pixels starting at (x, y).
func (b *Bitmap) VLine(x, y, h int) {
	for dy := 0; dy < h; dy++ {
		b.Set(x, y+dy, true)
	}
}

// Blit copies src onto b with its top-left corner at (x, y). Only set
// pixels are copied, so sprites overlay whatever is already drawn.
func (b *Bitmap) Blit(x, y int, src *Bitmap) {
	for dy := 0; dy < src.H; dy++ {
		for dx := 0; dx < src.W; dx++ {
			if src.At(dx, dy) {
				b.Set(x+dx, y+dy, true)
			}
		}
	}
}

// Clone returns an independent copy.
func (b *Bitmap) Clone() *Bitmap {
	out := &Bitmap{W: b.W, H: b.H, bits: make([]byte, len(b.bits))}
	copy(out.bits, b.bits)
	return out
}

// Bytes returns the packed row data. The slice aliases the bitmap's
// storage; callers that keep it must copy.
func (b *Bitmap) Bytes() []byte {
	return b.bits
}

// CountOn returns the number of lit pixels. Handy for tests that only
// care whether anything was drawn.
func (b *Bitmap) CountOn() int {
	n := 0
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			if b.At(x, y) {
				n++
			}
		}
	}
	return n
}

// String renders the bitmap as ASCII art, one rune per pixel. Used in
// test failure output.
func (b *Bitmap) String() string {
	var sb strings.Builder
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			if b.At(x, y) {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ParseBitmap builds a bitmap from ASCII art rows where '#' is a lit
// pixel. All rows must be the same width. Used for the small status
// icons and in tests.
func ParseBitmap(rows []string) *Bitmap {
	if len(rows) == 0 {
		return NewBitmap(0, 0)
	}
	b := NewBitmap(len(rows[0]), len(rows))
	for y, row := range rows {
		for x := 0; x < len(row); x++ {
			if row[x] == '#' {
				b.Set(x, y, true)
			}
		}
	}
	return b
}
