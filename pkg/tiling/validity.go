// Package tiling finds the grid alignment that fits the most whole tiles
// inside a mask's foreground and cuts those tiles out of the content image.
//
// IsValid is the single admissibility test. Search and Extract both call it,
// so every tile counted by the search is exactly a tile that gets extracted.
package tiling

import (
	"errors"

	"octtiler/internal/models"
)

// ErrSizeMismatch is returned when an image and its mask differ in size
var ErrSizeMismatch = errors.New("image and mask dimensions differ")

// IsValid reports whether the half-open rectangle [x0,x1) x [y0,y1) lies
// inside mask and contains no background pixel. Out-of-bounds rectangles are
// rejected before any pixel is read.
func IsValid(mask *models.Gray, x0, y0, x1, y1 int) bool {
	if x1 > mask.Width || y1 > mask.Height {
		return false
	}
	if x0 < 0 || y0 < 0 {
		return false
	}

	for y := y0; y < y1; y++ {
		row := mask.Row(y)
		for x := x0; x < x1; x++ {
			if row[x] == 0 {
				return false
			}
		}
	}
	return true
}
