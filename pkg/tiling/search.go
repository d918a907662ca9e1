package tiling

import (
	"image"

	"octtiler/internal/models"
	"octtiler/pkg/visualization"
)

// SearchOptions configures the offset search
type SearchOptions struct {
	// TileSize is the edge length T of the square tiles
	TileSize int

	// FullRange searches offsets in [0, T) instead of [0, T/2).
	// The half range is the historical behaviour; widening it can change
	// which offset wins, so it is opt-in.
	FullRange bool

	// Visualize enables rendering of the debug image
	Visualize bool

	// Seed1 and Seed2 seed the colour generator of the debug image.
	// They never influence the offset or the count.
	Seed1 uint64
	Seed2 uint64
}

// offsetLimit returns the exclusive upper bound of both offset coordinates
func (o SearchOptions) offsetLimit() int {
	if o.FullRange {
		return o.TileSize
	}
	return o.TileSize / 2
}

// Search scans every offset (sx outer, sy inner, both ascending) and returns
// the one with the most valid tiles. Only a strictly greater count replaces
// the current best, so ties go to the earliest offset in scan order.
//
// When opts.Visualize is set the second return value is the mask with each
// valid tile of the winning offset painted in a random colour; otherwise it
// is nil. If no offset yields a valid tile the result is (0,0) with a count
// of zero and the visualization is the unpainted mask.
func Search(mask *models.Gray, opts SearchOptions) (models.AlignmentResult, *image.RGBA) {
	var best models.AlignmentResult
	grid := models.NewGrid(mask.Width, mask.Height, opts.TileSize)

	var palette *visualization.Palette
	var canvas *visualization.Canvas
	if opts.Visualize {
		palette = visualization.NewPalette(opts.Seed1, opts.Seed2)
		canvas = visualization.NewCanvas(mask)
	}

	if opts.TileSize <= 0 {
		return best, canvasImage(canvas)
	}

	limit := opts.offsetLimit()
	for sx := 0; sx < limit; sx++ {
		for sy := 0; sy < limit; sy++ {
			offset := models.Offset{X: sx, Y: sy}

			count := CountValid(mask, grid, offset)
			if count > best.Count {
				best = models.AlignmentResult{Offset: offset, Count: count}
				if opts.Visualize {
					canvas = paintValid(mask, grid, offset, palette)
				}
			}
		}
	}

	return best, canvasImage(canvas)
}

// CountValid returns how many cells of grid are valid under offset
func CountValid(mask *models.Gray, grid models.Grid, offset models.Offset) int {
	count := 0
	for tx := 0; tx < grid.CountX; tx++ {
		for ty := 0; ty < grid.CountY; ty++ {
			r := grid.Bounds(offset, tx, ty)
			if IsValid(mask, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y) {
				count++
			}
		}
	}
	return count
}

// paintValid renders a fresh canvas with every valid tile in its own colour
func paintValid(mask *models.Gray, grid models.Grid, offset models.Offset, palette *visualization.Palette) *visualization.Canvas {
	canvas := visualization.NewCanvas(mask)
	for tx := 0; tx < grid.CountX; tx++ {
		for ty := 0; ty < grid.CountY; ty++ {
			r := grid.Bounds(offset, tx, ty)
			if IsValid(mask, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y) {
				canvas.Fill(r, palette.Next())
			}
		}
	}
	return canvas
}

func canvasImage(c *visualization.Canvas) *image.RGBA {
	if c == nil {
		return nil
	}
	return c.Image()
}
