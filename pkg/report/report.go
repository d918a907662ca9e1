// Package report writes a YAML summary per tiled pair: the chosen alignment,
// mask coverage and per-tile intensity statistics, so downstream feature
// extraction can check what it is working on without reopening every tile.
package report

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"octtiler/internal/models"
)

// PairReport is the YAML document written for one pair
type PairReport struct {
	Image string `yaml:"image"`
	Mask  string `yaml:"mask"`

	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	TileSize      int  `yaml:"tileSize"`
	ClosingRounds int  `yaml:"closingRounds"`
	FullRange     bool `yaml:"fullRange"`

	GridX int `yaml:"gridX"`
	GridY int `yaml:"gridY"`

	// Offset is the winning grid shift as [sx, sy]
	Offset     [2]int `yaml:"offset,flow"`
	ValidTiles int    `yaml:"validTiles"`

	// Coverage is the foreground fraction of the mask before and after closing
	CoverageRaw    float64 `yaml:"coverageRaw"`
	CoverageClosed float64 `yaml:"coverageClosed"`

	Tiles []TileEntry `yaml:"tiles"`
}

// TileEntry describes one written tile
type TileEntry struct {
	TX     int    `yaml:"tx"`
	TY     int    `yaml:"ty"`
	Bounds [4]int `yaml:"bounds,flow"`
	File   string `yaml:"file"`

	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stdDev"`
	Digest string  `yaml:"digest"`
}

// New starts a report for a pair of the given size
func New(imagePath, maskPath string, width, height, tileSize int) *PairReport {
	grid := models.NewGrid(width, height, tileSize)
	return &PairReport{
		Image:    imagePath,
		Mask:     maskPath,
		Width:    width,
		Height:   height,
		TileSize: tileSize,
		GridX:    grid.CountX,
		GridY:    grid.CountY,
	}
}

// SetResult records the winning alignment
func (r *PairReport) SetResult(res models.AlignmentResult) {
	r.Offset = [2]int{res.Offset.X, res.Offset.Y}
	r.ValidTiles = res.Count
}

// AddTile appends the statistics of an extracted tile
func (r *PairReport) AddTile(tile models.Tile, file string) {
	r.Tiles = append(r.Tiles, NewTileEntry(tile, file))
}

// NewTileEntry computes mean, standard deviation and content digest of a tile
func NewTileEntry(tile models.Tile, file string) TileEntry {
	b := tile.Bounds
	entry := TileEntry{
		TX:     tile.TX,
		TY:     tile.TY,
		Bounds: [4]int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y},
		File:   file,
	}

	if tile.Image == nil || len(tile.Image.Pix) == 0 {
		return entry
	}

	values := make([]float64, len(tile.Image.Pix))
	for i, v := range tile.Image.Pix {
		values[i] = float64(v)
	}
	entry.Mean, entry.StdDev = stat.MeanStdDev(values, nil)
	entry.Digest = Digest(tile.Image)

	return entry
}

// Digest returns the hex blake3 hash of the grid dimensions and pixels
func Digest(g *models.Gray) string {
	h := blake3.New()
	fmt.Fprintf(h, "%dx%d:", g.Width, g.Height)
	h.Write(g.Pix)
	return hex.EncodeToString(h.Sum(nil))
}

// Coverage returns the foreground fraction of a mask
func Coverage(mask *models.Gray) float64 {
	if len(mask.Pix) == 0 {
		return 0
	}
	return float64(mask.ForegroundCount()) / float64(len(mask.Pix))
}

// Write saves the report as YAML, creating the parent directory if needed
func (r *PairReport) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating report directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}

// Load reads a report written by Write
func Load(path string) (*PairReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading report: %w", err)
	}

	r := &PairReport{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("error parsing report: %w", err)
	}
	return r, nil
}
