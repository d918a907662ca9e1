package visualization

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"

	"github.com/lucasb-eyer/go-colorful"

	"octtiler/internal/models"
)

// Canvas is an RGB rendering of a mask on which accepted tiles are painted.
// It is the debug artifact written next to each tiled pair.
type Canvas struct {
	img *image.RGBA
}

// NewCanvas renders mask as a neutral gray RGB image
func NewCanvas(mask *models.Gray) *Canvas {
	img := image.NewRGBA(mask.Bounds())
	for y := 0; y < mask.Height; y++ {
		row := mask.Row(y)
		for x, v := range row {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = v
			img.Pix[i+1] = v
			img.Pix[i+2] = v
			img.Pix[i+3] = 0xff
		}
	}
	return &Canvas{img: img}
}

// Fill paints r with c. Pixels outside the canvas are ignored.
func (c *Canvas) Fill(r image.Rectangle, col color.RGBA) {
	draw.Draw(c.img, r.Intersect(c.img.Bounds()), &image.Uniform{C: col}, image.Point{}, draw.Src)
}

// Image returns the rendered canvas
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// minDistance is the smallest Lab distance between two consecutive palette
// colours, enough to tell neighbouring tiles apart
const minDistance = 0.25

// Palette hands out random opaque colours from its own generator, so the
// sequence depends only on the seed and never on global state.
type Palette struct {
	rng  *rand.Rand
	prev colorful.Color
	used bool
}

// NewPalette creates a palette seeded with the two PCG seed words
func NewPalette(seed1, seed2 uint64) *Palette {
	return &Palette{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Next draws a fresh saturated colour with a random hue. Draws too close to
// the previous colour are retried a few times.
func (p *Palette) Next() color.RGBA {
	var c colorful.Color
	for try := 0; try < 8; try++ {
		c = colorful.Hsv(
			p.rng.Float64()*360,
			0.55+p.rng.Float64()*0.45,
			0.65+p.rng.Float64()*0.35,
		)
		if !p.used || c.DistanceLab(p.prev) >= minDistance {
			break
		}
	}
	p.prev, p.used = c, true

	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
