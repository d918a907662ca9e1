package models

import (
	"fmt"
	"image"
)

// Offset is the pixel shift applied to the origin of a tile grid
type Offset struct {
	X int
	Y int
}

func (o Offset) String() string {
	return fmt.Sprintf("(%d,%d)", o.X, o.Y)
}

// Grid describes a lattice of square tiles laid over a grid of pixels.
// The counts come from the unshifted dimensions; a shifted tile that leaves
// the buffer still belongs to the grid and is simply rejected as invalid.
type Grid struct {
	CountX int
	CountY int
	Size   int
}

// NewGrid computes floor(width/size) x floor(height/size) tiles
func NewGrid(width, height, size int) Grid {
	if size <= 0 {
		return Grid{Size: size}
	}
	return Grid{
		CountX: width / size,
		CountY: height / size,
		Size:   size,
	}
}

// Len returns the number of cells in the grid
func (g Grid) Len() int {
	return g.CountX * g.CountY
}

// Bounds returns the pixel rectangle of cell (tx, ty) under offset o
func (g Grid) Bounds(o Offset, tx, ty int) image.Rectangle {
	x0 := o.X + tx*g.Size
	y0 := o.Y + ty*g.Size
	return image.Rect(x0, y0, x0+g.Size, y0+g.Size)
}

// Tile is one cell of a grid. Image is only set for valid tiles and holds
// the Size x Size block of the content image under the cell.
type Tile struct {
	TX     int
	TY     int
	Bounds image.Rectangle
	Valid  bool
	Image  *Gray
}

// FileName returns TILE-<tx>-<ty>-<x0>,<y0>,<x1>,<y1>.<ext>
func (t Tile) FileName(ext string) string {
	return fmt.Sprintf("TILE-%d-%d-%d,%d,%d,%d.%s",
		t.TX, t.TY,
		t.Bounds.Min.X, t.Bounds.Min.Y, t.Bounds.Max.X, t.Bounds.Max.Y,
		ext)
}

// AlignmentResult is the outcome of the offset search for one mask
type AlignmentResult struct {
	Offset Offset
	Count  int
}
