package tiling

import (
	"fmt"
	"image"

	"octtiler/internal/models"
)

// TileSink receives each valid tile as soon as it has been cut out.
// Returning an error stops the extraction.
type TileSink func(tile models.Tile) error

// Extract walks the grid anchored at offset (tx outer, ty inner), keeps the
// cells that pass IsValid on the closed mask and copies the matching block of
// the original content image into each tile. Invalid cells are skipped
// without notice. It returns the number of tiles handed to sink.
func Extract(content, closedMask *models.Gray, offset models.Offset, tileSize int, sink TileSink) (int, error) {
	if !content.SameSize(closedMask) {
		return 0, fmt.Errorf("%w: image %dx%d, mask %dx%d", ErrSizeMismatch,
			content.Width, content.Height, closedMask.Width, closedMask.Height)
	}

	grid := models.NewGrid(closedMask.Width, closedMask.Height, tileSize)
	extracted := 0

	for tx := 0; tx < grid.CountX; tx++ {
		for ty := 0; ty < grid.CountY; ty++ {
			r := grid.Bounds(offset, tx, ty)
			if !IsValid(closedMask, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y) {
				continue
			}

			tile := models.Tile{
				TX:     tx,
				TY:     ty,
				Bounds: r,
				Valid:  true,
				Image:  content.SubGray(r),
			}
			if err := sink(tile); err != nil {
				return extracted, fmt.Errorf("tile %d-%d: %w", tx, ty, err)
			}
			extracted++
		}
	}

	return extracted, nil
}

// TileImage renders a tile as an opaque RGB image with r = g = b = intensity
func TileImage(tile models.Tile) *image.RGBA {
	g := tile.Image
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x, v := range g.Row(y) {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
			img.Pix[i+3] = 0xff
		}
	}
	return img
}
