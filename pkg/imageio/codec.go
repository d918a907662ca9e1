// Package imageio loads source images as intensity grids and writes tiles and
// debug images back to disk.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"

	"octtiler/internal/models"
)

// ErrUnsupportedFormat is returned for file extensions the codec cannot handle
var ErrUnsupportedFormat = errors.New("unsupported image format")

// inputFormats maps lower-case extensions the codec can decode to a
// canonical format name
var inputFormats = map[string]string{
	".tif":  "tif",
	".tiff": "tif",
	".png":  "png",
	".jpg":  "jpg",
	".jpeg": "jpg",
	".bmp":  "bmp",
	".gif":  "gif",
}

// outputFormats lists the encoders used for tiles and debug images. Only
// lossless formats qualify: a written tile must reload to the exact content
// pixels it was cut from.
var outputFormats = map[string]bool{
	"tif": true,
	"png": true,
	"bmp": true,
}

// IsImageFile reports whether name carries a supported image extension
func IsImageFile(name string) bool {
	_, ok := inputFormats[strings.ToLower(filepath.Ext(name))]
	return ok
}

// NormalizeFormat validates an output format given with or without a dot
// ("tif", ".TIFF", "png") and returns its canonical extension. Lossy
// formats such as jpg and gif are rejected even though Load reads them.
func NormalizeFormat(format string) (string, error) {
	ext := strings.ToLower(format)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	canonical := inputFormats[ext]
	if !outputFormats[canonical] {
		return "", fmt.Errorf("%w: %q is not a lossless output format", ErrUnsupportedFormat, format)
	}
	return canonical, nil
}

// Load decodes the image at path and reduces it to per-pixel lightness
func Load(path string) (*models.Gray, error) {
	if !IsImageFile(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return FromImage(img), nil
}

// FromImage converts any image to an intensity grid. Gray images are copied
// as-is; colour pixels use HSL lightness, (max + min) / 2 of the 8-bit RGB
// channels, so a gray pixel keeps its value.
func FromImage(img image.Image) *models.Gray {
	b := img.Bounds()
	g := models.NewGray(b.Dx(), b.Dy())

	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < g.Height; y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(g.Row(y), src.Pix[i:i+g.Width])
		}
		return g
	}

	for y := 0; y < g.Height; y++ {
		row := g.Row(y)
		for x := 0; x < g.Width; x++ {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			row[x] = lightness(uint8(r>>8), uint8(gr>>8), uint8(bl>>8))
		}
	}
	return g
}

func lightness(r, g, b uint8) uint8 {
	hi := max(r, g, b)
	lo := min(r, g, b)
	return uint8((int(hi) + int(lo)) / 2)
}

// Save encodes img to path, picking the encoder from the extension.
// TIFF output is deflate-compressed; other formats go through imaging.
func Save(path string, img image.Image) error {
	format, err := NormalizeFormat(filepath.Ext(path))
	if err != nil {
		return err
	}

	if format != "tif" {
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("failed to encode %s: %w", path, err)
		}
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	if err := tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}
