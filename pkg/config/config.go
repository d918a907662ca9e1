// Package config provides configuration loading and management for octtiler.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"octtiler/pkg/imageio"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration loaded from YAML
type Config struct {
	// Project location
	Project struct {
		// Root is the folder searched for image/mask pairs; tiles and logs
		// are written below it
		Root string `yaml:"root"`
	} `yaml:"project"`

	// Tiling parameters
	Tiling struct {
		// TileSize is the edge length of the square tiles in pixels
		TileSize int `yaml:"tileSize"`

		// ClosingRounds is the number of dilations (and then erosions)
		// applied to each mask before tiling
		ClosingRounds int `yaml:"closingRounds"`

		// MaskToken is the substring that marks a file as a mask
		MaskToken string `yaml:"maskToken"`
	} `yaml:"tiling"`

	// Offset search parameters
	Search struct {
		// FullRange searches offsets in [0, tileSize) instead of [0, tileSize/2)
		FullRange bool `yaml:"fullRange"`

		// Seed drives the colours of the debug image
		Seed uint64 `yaml:"seed"`
	} `yaml:"search"`

	// Output parameters
	Output struct {
		// Format is the file extension of tiles and debug images; one of
		// the lossless formats tif, png or bmp
		Format string `yaml:"format"`

		// DebugImage enables the BestTile visualization per pair
		DebugImage bool `yaml:"debugImage"`

		// Report enables the per-pair YAML report
		Report bool `yaml:"report"`
	} `yaml:"output"`

	// Processing parameters
	Processing struct {
		// Workers is how many pairs are processed at the same time
		Workers int `yaml:"workers"`
	} `yaml:"processing"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Tiling.TileSize = 80
	cfg.Tiling.ClosingRounds = 3
	cfg.Tiling.MaskToken = "Mask"

	cfg.Search.FullRange = false
	cfg.Search.Seed = 1

	cfg.Output.Format = "tif"
	cfg.Output.DebugImage = true
	cfg.Output.Report = true

	// Pairs are processed one after another unless asked otherwise
	cfg.Processing.Workers = 1

	return cfg
}

// Validate checks that the configuration can drive a tiling run
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return fmt.Errorf("%w: project root is required", ErrInvalid)
	}
	if c.Tiling.TileSize < 2 {
		return fmt.Errorf("%w: tile size must be at least 2, got %d", ErrInvalid, c.Tiling.TileSize)
	}
	if c.Tiling.ClosingRounds < 0 {
		return fmt.Errorf("%w: closing rounds must not be negative, got %d", ErrInvalid, c.Tiling.ClosingRounds)
	}
	if c.Tiling.MaskToken == "" {
		return fmt.Errorf("%w: mask token must not be empty", ErrInvalid)
	}
	if _, err := imageio.NormalizeFormat(c.Output.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Processing.Workers < 1 {
		return fmt.Errorf("%w: workers must be a positive integer, got %d", ErrInvalid, c.Processing.Workers)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
