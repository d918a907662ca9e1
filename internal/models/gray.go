package models

import (
	"image"
)

// Gray is a dense 8-bit intensity grid stored in row-major order.
// It serves both as a content image (arbitrary intensity) and as a mask,
// where a pixel is foreground iff its value is greater than zero.
//
// A Gray is treated as immutable once it has been handed to another
// component; filters and extraction always build new instances.
type Gray struct {
	// Pix holds Width*Height intensity values, row by row
	Pix []uint8

	// Width and Height are the dimensions of the grid in pixels
	Width  int
	Height int
}

// NewGray allocates a zero-filled (all background) grid
func NewGray(width, height int) *Gray {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Gray{
		Pix:    make([]uint8, width*height),
		Width:  width,
		Height: height,
	}
}

// NewGrayFilled allocates a grid with every pixel set to value
func NewGrayFilled(width, height int, value uint8) *Gray {
	g := NewGray(width, height)
	if value != 0 {
		for i := range g.Pix {
			g.Pix[i] = value
		}
	}
	return g
}

// At returns the intensity at (x, y). Coordinates must be in bounds.
func (g *Gray) At(x, y int) uint8 {
	return g.Pix[y*g.Width+x]
}

// Set writes the intensity at (x, y). Only used while a grid is being built.
func (g *Gray) Set(x, y int, value uint8) {
	g.Pix[y*g.Width+x] = value
}

// Row returns the pixels of row y without copying
func (g *Gray) Row(y int) []uint8 {
	return g.Pix[y*g.Width : (y+1)*g.Width]
}

// Bounds returns the grid extent as an image rectangle anchored at the origin
func (g *Gray) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// Clone returns an independent copy
func (g *Gray) Clone() *Gray {
	pix := make([]uint8, len(g.Pix))
	copy(pix, g.Pix)
	return &Gray{Pix: pix, Width: g.Width, Height: g.Height}
}

// SubGray copies the pixels inside r into a new grid of size r.Dx() x r.Dy().
// r is clipped to the grid bounds.
func (g *Gray) SubGray(r image.Rectangle) *Gray {
	r = r.Intersect(g.Bounds())
	sub := NewGray(r.Dx(), r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		copy(sub.Row(y-r.Min.Y), g.Pix[y*g.Width+r.Min.X:y*g.Width+r.Max.X])
	}
	return sub
}

// ForegroundCount returns the number of pixels with intensity > 0
func (g *Gray) ForegroundCount() int {
	n := 0
	for _, v := range g.Pix {
		if v > 0 {
			n++
		}
	}
	return n
}

// SameSize reports whether both grids have identical dimensions
func (g *Gray) SameSize(other *Gray) bool {
	return g.Width == other.Width && g.Height == other.Height
}

// ToImage wraps a copy of the pixels as a standard library grayscale image
func (g *Gray) ToImage() *image.Gray {
	img := image.NewGray(g.Bounds())
	copy(img.Pix, g.Pix)
	return img
}
