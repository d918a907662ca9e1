package imageio

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"octtiler/internal/models"
)

// createTempDir creates a temporary directory for test files
func createTempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "octtiler-imageio-*")
	if err != nil {
		t.Fatalf("Failed to create temporary directory: %v", err)
	}
	return dir
}

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"scan.tif":       true,
		"scanMask.TIFF":  true,
		"a.png":          true,
		"b.jpeg":         true,
		"c.gif":          true,
		"notes.txt":      false,
		"noext":          false,
		"archive.tif.gz": false,
	}
	for name, want := range tests {
		if got := IsImageFile(name); got != want {
			t.Errorf("IsImageFile(%q) = %v, expected %v", name, got, want)
		}
	}
}

func TestNormalizeFormat(t *testing.T) {
	for in, want := range map[string]string{"tif": "tif", ".TIFF": "tif", "png": "png", ".BMP": "bmp"} {
		got, err := NormalizeFormat(in)
		if err != nil {
			t.Errorf("NormalizeFormat(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizeFormat(%q) = %q, expected %q", in, got, want)
		}
	}

	// Readable but lossy, so never used for output
	for _, in := range []string{"webp", "jpg", ".jpeg", "gif", ""} {
		if _, err := NormalizeFormat(in); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("NormalizeFormat(%q): expected ErrUnsupportedFormat, got %v", in, err)
		}
	}
}

func TestSaveRejectsLossyFormats(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	img := models.NewGrayFilled(4, 4, 9).ToImage()
	for _, name := range []string{"tile.jpg", "tile.gif"} {
		path := filepath.Join(dir, name)
		if err := Save(path, img); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Save(%s): expected ErrUnsupportedFormat, got %v", name, err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("Expected no file written for %s", name)
		}
	}
}

func TestFromImageLightness(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	img.Set(1, 0, color.RGBA{R: 200, G: 50, B: 10, A: 255})
	img.Set(2, 0, color.RGBA{A: 255})

	g := FromImage(img)

	want := []uint8{100, 105, 0}
	for x, w := range want {
		if got := g.At(x, 0); got != w {
			t.Errorf("Expected lightness %d at x=%d, got %d", w, x, got)
		}
	}
}

func TestFromImageGraySubImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 6, 6))
	for i := range src.Pix {
		src.Pix[i] = uint8(i)
	}
	sub := src.SubImage(image.Rect(2, 3, 5, 6))

	g := FromImage(sub)
	if g.Width != 3 || g.Height != 3 {
		t.Fatalf("Expected 3x3 grid, got %dx%d", g.Width, g.Height)
	}
	if got, want := g.At(0, 0), src.GrayAt(2, 3).Y; got != want {
		t.Errorf("Expected %d at origin, got %d", want, got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	g := models.NewGray(12, 7)
	for i := range g.Pix {
		g.Pix[i] = uint8(i * 3)
	}

	// Lossless formats only
	for _, ext := range []string{"tif", "png", "bmp"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "roundtrip."+ext)
			if err := Save(path, g.ToImage()); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !loaded.SameSize(g) {
				t.Fatalf("Expected %dx%d, got %dx%d", g.Width, g.Height, loaded.Width, loaded.Height)
			}
			for i := range g.Pix {
				if loaded.Pix[i] != g.Pix[i] {
					t.Fatalf("Pixel %d: expected %d, got %d", i, g.Pix[i], loaded.Pix[i])
				}
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := createTempDir(t)
	defer os.RemoveAll(dir)

	if _, err := Load(filepath.Join(dir, "notes.txt")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}

	corrupt := filepath.Join(dir, "broken.tif")
	if err := os.WriteFile(corrupt, []byte("not a tiff"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := Load(corrupt); err == nil {
		t.Error("Expected an error for a corrupt file")
	}

	if _, err := Load(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
