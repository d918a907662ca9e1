// Package morphology implements grayscale dilation, erosion and closing
// with a fixed 3x3 structuring element.
//
// Closing (dilation followed by erosion) fills small background holes and
// bridges narrow gaps in a mask while keeping its overall footprint, which is
// what the tiler needs before deciding where whole tiles fit.
package morphology

import (
	"octtiler/internal/models"
)

// Dilate returns a new grid where each pixel is the maximum of its 3x3
// neighbourhood. Border pixels only consider neighbours inside the grid.
func Dilate(src *models.Gray) *models.Gray {
	return filter(src, true)
}

// Erode returns a new grid where each pixel is the minimum of its 3x3
// neighbourhood. Border pixels only consider neighbours inside the grid.
func Erode(src *models.Gray) *models.Gray {
	return filter(src, false)
}

// Close applies rounds dilations followed by rounds erosions.
// A round count of zero (or less) returns an unmodified copy.
func Close(src *models.Gray, rounds int) *models.Gray {
	out := src.Clone()
	for i := 0; i < rounds; i++ {
		out = Dilate(out)
	}
	for i := 0; i < rounds; i++ {
		out = Erode(out)
	}
	return out
}

// filter runs one 3x3 max (dilate) or min (erode) pass
func filter(src *models.Gray, dilate bool) *models.Gray {
	w, h := src.Width, src.Height
	dst := models.NewGray(w, h)

	for y := 0; y < h; y++ {
		y0, y1 := max(y-1, 0), min(y+1, h-1)
		out := dst.Row(y)

		for x := 0; x < w; x++ {
			x0, x1 := max(x-1, 0), min(x+1, w-1)

			var v uint8
			if !dilate {
				v = 255
			}
			for yy := y0; yy <= y1; yy++ {
				row := src.Row(yy)
				for xx := x0; xx <= x1; xx++ {
					if dilate {
						v = max(v, row[xx])
					} else {
						v = min(v, row[xx])
					}
				}
			}
			out[x] = v
		}
	}

	return dst
}
