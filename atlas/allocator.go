package atlas

import (
	"fmt"
	"image"
)

// Region is a rectangle inside an atlas page, in pixels.
type Region struct {
	X, Y          int
	Width, Height int
}

// IsValid reports whether the region has a positive size.
func (r Region) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("Region(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// shelf is one horizontal strip of a page.
type shelf struct {
	y      int
	height int
	nextX  int
}

// shelfAllocator packs rectangles into rows ("shelves"). A rectangle goes
// on the first shelf with room for it, or on a new shelf below the last.
// It is not safe for concurrent use; Atlas serializes access.
type shelfAllocator struct {
	width, height int
	padding       int
	shelves       []shelf
	used          int
}

func newShelfAllocator(width, height, padding int) *shelfAllocator {
	return &shelfAllocator{
		width:   width,
		height:  height,
		padding: max(padding, 0),
		shelves: make([]shelf, 0, 16),
	}
}

// allocate returns a region of w x h, or an invalid region if the page
// has no room.
func (a *shelfAllocator) allocate(w, h int) Region {
	if w <= 0 || h <= 0 {
		return Region{}
	}
	pw, ph := w+a.padding, h+a.padding
	if pw > a.width || ph > a.height {
		return Region{}
	}

	for i := range a.shelves {
		s := &a.shelves[i]
		if s.nextX+pw > a.width {
			continue
		}
		// A shelf can only grow taller while it is empty.
		if ph > s.height && s.nextX > 0 {
			continue
		}
		r := Region{X: s.nextX, Y: s.y, Width: w, Height: h}
		s.nextX += pw
		s.height = max(s.height, ph)
		a.used += w * h
		return r
	}

	y := 0
	if n := len(a.shelves); n > 0 {
		y = a.shelves[n-1].y + a.shelves[n-1].height
	}
	if y+ph > a.height {
		return Region{}
	}
	a.shelves = append(a.shelves, shelf{y: y, height: ph, nextX: pw})
	a.used += w * h
	return Region{X: 0, Y: y, Width: w, Height: h}
}

// utilization returns the fraction of the page covered by allocations.
func (a *shelfAllocator) utilization() float64 {
	if a.width == 0 || a.height == 0 {
		return 0
	}
	return float64(a.used) / float64(a.width*a.height)
}
