package render

import (
	"fmt"
	"sync"
)

// Display is the minimal contract a concrete panel driver must satisfy.
// Drawing calls stage pixels; Present pushes the staged frame to the
// panel in one go.
type Display interface {
	DrawBitmap(x, y int, bm *Bitmap) error
	DrawPixel(x, y int, on bool) error
	Present() error
	Size() (w, h int)
}

// MemDisplay is an in-memory Display for tests and headless development.
// The staged buffer receives draws; Present copies it to the front
// buffer, which readers inspect.
type MemDisplay struct {
	mu       sync.Mutex
	staged   *Bitmap
	front    *Bitmap
	presents int
}

// NewMemDisplay returns a cleared w by h in-memory display.
func NewMemDisplay(w, h int) *MemDisplay {
	return &MemDisplay{
		staged: NewBitmap(w, h),
		front:  NewBitmap(w, h),
	}
}

func (d *MemDisplay) DrawBitmap(x, y int, bm *Bitmap) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if bm.W > d.staged.W || bm.H > d.staged.H {
		return fmt.Errorf("bitmap %dx%d exceeds display %dx%d", bm.W, bm.H, d.staged.W, d.staged.H)
	}
	// full-size blits replace the frame, partial ones overlay
	if x == 0 && y == 0 && bm.W == d.staged.W && bm.H == d.staged.H {
		d.staged = bm.Clone()
		return nil
	}
	d.staged.Blit(x, y, bm)
	return nil
}

func (d *MemDisplay) DrawPixel(x, y int, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if x < 0 || y < 0 || x >= d.staged.W || y >= d.staged.H {
		return fmt.Errorf("pixel (%d, %d) outside display %dx%d", x, y, d.staged.W, d.staged.H)
	}
	d.staged.Set(x, y, on)
	return nil
}

func (d *MemDisplay) Present() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.front = d.staged.Clone()
	d.presents++
	return nil
}

func (d *MemDisplay) Size() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.staged.W, d.staged.H
}

// Front returns a copy of the last presented frame.
func (d *MemDisplay) Front() *Bitmap {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.front.Clone()
}

// Presents returns how many frames have been presented.
func (d *MemDisplay) Presents() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presents
}
