package tiling

import (
	"errors"
	"image"
	"math/rand/v2"
	"testing"

	"octtiler/internal/models"
	"octtiler/pkg/morphology"
)

// blobMask builds a mask with an elliptical foreground region and some
// salt noise, similar in shape to a tissue section
func blobMask(width, height int, seed uint64) *models.Gray {
	rng := rand.New(rand.NewPCG(seed, 1))
	m := models.NewGray(width, height)
	cx, cy := float64(width)/2, float64(height)/2
	rx, ry := float64(width)*0.45, float64(height)*0.35
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := (float64(x) - cx) / rx
			dy := (float64(y) - cy) / ry
			if dx*dx+dy*dy <= 1 && rng.IntN(50) != 0 {
				m.Set(x, y, 255)
			}
		}
	}
	return m
}

func randomContent(width, height int, seed uint64) *models.Gray {
	rng := rand.New(rand.NewPCG(seed, 2))
	g := models.NewGray(width, height)
	for i := range g.Pix {
		g.Pix[i] = uint8(rng.IntN(256))
	}
	return g
}

func TestIsValid(t *testing.T) {
	mask := models.NewGrayFilled(10, 10, 255)
	mask.Set(7, 7, 0)

	tests := []struct {
		name           string
		x0, y0, x1, y1 int
		want           bool
	}{
		{"inside", 0, 0, 5, 5, true},
		{"touches far edge", 0, 8, 7, 10, true},
		{"contains background", 5, 5, 10, 10, false},
		{"background on last pixel", 4, 4, 8, 8, false},
		{"x out of bounds", 6, 0, 11, 5, false},
		{"y out of bounds", 0, 6, 5, 11, false},
		{"negative origin", -1, 0, 4, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(mask, tt.x0, tt.y0, tt.x1, tt.y1); got != tt.want {
				t.Errorf("IsValid(%d,%d,%d,%d) = %v, expected %v", tt.x0, tt.y0, tt.x1, tt.y1, got, tt.want)
			}
		})
	}
}

// TestIsValidOutOfBoundsOnFullMask: a mask that is entirely foreground
// still rejects every rectangle reaching past the buffer
func TestIsValidOutOfBoundsOnFullMask(t *testing.T) {
	mask := models.NewGrayFilled(16, 12, 1)
	for x1 := 17; x1 < 20; x1++ {
		if IsValid(mask, 0, 0, x1, 4) {
			t.Errorf("Expected x1=%d to be rejected", x1)
		}
	}
	for y1 := 13; y1 < 16; y1++ {
		if IsValid(mask, 0, 0, 4, y1) {
			t.Errorf("Expected y1=%d to be rejected", y1)
		}
	}
	if !IsValid(mask, 0, 0, 16, 12) {
		t.Error("Expected full-buffer rectangle to be valid")
	}
}

func TestSearchFullForegroundScenario(t *testing.T) {
	mask := models.NewGrayFilled(160, 160, 255)
	closed := morphology.Close(mask, 0)

	result, _ := Search(closed, SearchOptions{TileSize: 80})

	if result.Offset != (models.Offset{}) {
		t.Errorf("Expected offset (0,0), got %v", result.Offset)
	}
	if result.Count != 4 {
		t.Errorf("Expected 4 valid tiles, got %d", result.Count)
	}
}

func TestSearchTieBreakKeepsFirstOffset(t *testing.T) {
	// Offsets (0,0) and (1,0) both fit two tiles; sy=1 pushes tiles out of bounds
	mask := models.NewGrayFilled(10, 4, 255)

	if n := CountValid(mask, models.NewGrid(10, 4, 4), models.Offset{X: 1}); n != 2 {
		t.Fatalf("Expected offset (1,0) to fit 2 tiles, got %d", n)
	}

	result, _ := Search(mask, SearchOptions{TileSize: 4})
	if result.Offset != (models.Offset{X: 0, Y: 0}) {
		t.Errorf("Expected tie to resolve to (0,0), got %v", result.Offset)
	}
	if result.Count != 2 {
		t.Errorf("Expected 2 valid tiles, got %d", result.Count)
	}
}

func TestSearchPrefersShiftedGrid(t *testing.T) {
	mask := models.NewGrayFilled(9, 4, 255)
	for y := 0; y < 4; y++ {
		mask.Set(0, y, 0)
	}

	result, _ := Search(mask, SearchOptions{TileSize: 4})
	if result.Offset != (models.Offset{X: 1, Y: 0}) || result.Count != 2 {
		t.Errorf("Expected offset (1,0) with 2 tiles, got %v with %d", result.Offset, result.Count)
	}
}

// TestSearchHalfRange checks that the default search never leaves [0, T/2)
// while the full range finds the better offset beyond it
func TestSearchHalfRange(t *testing.T) {
	// Foreground starts at x=3, so with T=4 only sx=3 fits a tile
	mask := models.NewGray(7, 4)
	for y := 0; y < 4; y++ {
		for x := 3; x < 7; x++ {
			mask.Set(x, y, 255)
		}
	}

	half, _ := Search(mask, SearchOptions{TileSize: 4})
	if half.Count != 0 || half.Offset != (models.Offset{}) {
		t.Errorf("Expected no tiles at default (0,0), got %v with %d", half.Offset, half.Count)
	}

	full, _ := Search(mask, SearchOptions{TileSize: 4, FullRange: true})
	if full.Offset != (models.Offset{X: 3, Y: 0}) || full.Count != 1 {
		t.Errorf("Expected offset (3,0) with 1 tile, got %v with %d", full.Offset, full.Count)
	}
}

func TestSearchNoValidTile(t *testing.T) {
	mask := models.NewGray(40, 40)

	result, vis := Search(mask, SearchOptions{TileSize: 8, Visualize: true})
	if result.Count != 0 || result.Offset != (models.Offset{}) {
		t.Errorf("Expected (0,0) with 0 tiles, got %v with %d", result.Offset, result.Count)
	}
	if vis == nil {
		t.Fatal("Expected a visualization even without valid tiles")
	}
	if vis.Bounds() != image.Rect(0, 0, 40, 40) {
		t.Errorf("Expected 40x40 visualization, got %v", vis.Bounds())
	}
}

func TestSearchDeterministic(t *testing.T) {
	mask := morphology.Close(blobMask(120, 90, 5), 3)

	first, _ := Search(mask, SearchOptions{TileSize: 16, Visualize: true, Seed1: 1, Seed2: 2})
	for i := 0; i < 3; i++ {
		again, _ := Search(mask, SearchOptions{TileSize: 16, Visualize: true, Seed1: uint64(i + 10), Seed2: 7})
		if again != first {
			t.Fatalf("Run %d: expected %v, got %v", i, first, again)
		}
	}

	plain, vis := Search(mask, SearchOptions{TileSize: 16})
	if plain != first {
		t.Errorf("Expected visualization to leave the result unchanged, got %v vs %v", plain, first)
	}
	if vis != nil {
		t.Error("Expected no visualization when disabled")
	}
}

// TestSearchIsExhaustive compares against a brute-force maximum
func TestSearchIsExhaustive(t *testing.T) {
	mask := morphology.Close(blobMask(100, 70, 11), 1)
	const size = 12
	grid := models.NewGrid(mask.Width, mask.Height, size)

	bestCount := 0
	for sx := 0; sx < size/2; sx++ {
		for sy := 0; sy < size/2; sy++ {
			bestCount = max(bestCount, CountValid(mask, grid, models.Offset{X: sx, Y: sy}))
		}
	}

	result, _ := Search(mask, SearchOptions{TileSize: size})
	if result.Count != bestCount {
		t.Errorf("Expected best count %d, got %d", bestCount, result.Count)
	}
	if CountValid(mask, grid, result.Offset) != result.Count {
		t.Error("Reported count does not match the reported offset")
	}
}

func TestVisualizationPaintsValidTiles(t *testing.T) {
	mask := models.NewGrayFilled(160, 160, 255)
	_, vis := Search(mask, SearchOptions{TileSize: 80, Visualize: true, Seed1: 3, Seed2: 4})

	// Each tile is a single flat colour
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, 80, 80), image.Rect(80, 0, 160, 80),
		image.Rect(0, 80, 80, 160), image.Rect(80, 80, 160, 160),
	} {
		c := vis.RGBAAt(r.Min.X, r.Min.Y)
		if vis.RGBAAt(r.Max.X-1, r.Max.Y-1) != c {
			t.Errorf("Expected tile %v to be painted in a single colour", r)
		}
	}
}

func TestExtractConsistency(t *testing.T) {
	const size = 16
	content := randomContent(130, 100, 21)
	closed := morphology.Close(blobMask(130, 100, 21), 3)

	result, _ := Search(closed, SearchOptions{TileSize: size})

	seen := map[image.Rectangle]bool{}
	n, err := Extract(content, closed, result.Offset, size, func(tile models.Tile) error {
		r := tile.Bounds
		if !IsValid(closed, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y) {
			t.Errorf("Extracted tile %v is not valid on the closed mask", r)
		}
		if r.Dx() != size || r.Dy() != size {
			t.Errorf("Expected %dx%d tile, got %v", size, size, r)
		}
		if (r.Min.X-result.Offset.X)%size != 0 || (r.Min.Y-result.Offset.Y)%size != 0 {
			t.Errorf("Tile %v is not aligned to offset %v", r, result.Offset)
		}
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				if tile.Image.At(x, y) != content.At(r.Min.X+x, r.Min.Y+y) {
					t.Fatalf("Tile %v differs from content at (%d,%d)", r, x, y)
				}
			}
		}
		for other := range seen {
			if other.Overlaps(r) {
				t.Errorf("Tiles %v and %v overlap", other, r)
			}
		}
		seen[r] = true
		return nil
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if n != result.Count {
		t.Errorf("Expected %d extracted tiles to match search count, got %d", result.Count, n)
	}
	if n == 0 {
		t.Error("Expected the blob to fit at least one tile")
	}
}

func TestExtractUsesContentNotMask(t *testing.T) {
	content := models.NewGrayFilled(8, 8, 40)
	mask := models.NewGrayFilled(8, 8, 255)

	_, err := Extract(content, mask, models.Offset{}, 4, func(tile models.Tile) error {
		for _, v := range tile.Image.Pix {
			if v != 40 {
				t.Fatalf("Expected content intensity 40, got %d", v)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
}

func TestExtractSizeMismatch(t *testing.T) {
	_, err := Extract(models.NewGray(8, 8), models.NewGray(8, 9), models.Offset{}, 4, func(models.Tile) error { return nil })
	if !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Expected ErrSizeMismatch, got %v", err)
	}
}

func TestExtractStopsOnSinkError(t *testing.T) {
	mask := models.NewGrayFilled(16, 16, 255)
	boom := errors.New("disk full")

	calls := 0
	n, err := Extract(mask, mask, models.Offset{}, 4, func(models.Tile) error {
		calls++
		if calls == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected sink error, got %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 tiles before the failure, got %d", n)
	}
}

func TestTileImage(t *testing.T) {
	g := models.NewGray(2, 2)
	g.Set(1, 0, 128)
	img := TileImage(models.Tile{Image: g})

	c := img.RGBAAt(1, 0)
	if c.R != 128 || c.G != 128 || c.B != 128 || c.A != 255 {
		t.Errorf("Expected opaque gray 128, got %v", c)
	}
}
