// Package discovery finds image/mask pairs below a project folder.
//
// A folder holds pairs when it contains at least one image whose file name
// contains the mask token. Inside a folder, image files are visited in
// lexical order and paired as they come: once both a mask and a content
// image have been seen they form a pair and both slots are cleared.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"octtiler/pkg/imageio"
)

// DefaultMaskToken marks mask files, e.g. "Sample01Mask.tif"
const DefaultMaskToken = "Mask"

// LogDirName is the folder (under the project root) for debug artifacts
const LogDirName = "log"

// TileDirPrefix starts the name of every tile output folder
const TileDirPrefix = "TILES-"

// Pair is one content image with its mask
type Pair struct {
	// Dir is the folder holding both files
	Dir string

	// Rel is the folder path relative to the project root, slash separated.
	// The second and later pairs of the same folder get a "-pair<n>" suffix
	// so their outputs do not overwrite each other. Rel is unique within one
	// Scan, and so is Name.
	Rel string

	ImagePath string
	MaskPath  string
}

// Name returns Rel with path separators replaced by '-'; it is used to
// build flat file names in the log folder
func (p Pair) Name() string {
	return strings.ReplaceAll(p.Rel, "/", "-")
}

// Scan walks root and returns every pair in walk order. Output folders
// written by the tiler (TILES-* and log directly under root) are skipped.
func Scan(root, maskToken string) ([]Pair, error) {
	if maskToken == "" {
		maskToken = DefaultMaskToken
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read project folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", root)
	}

	var pairs []Pair
	used := make(map[string]bool)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && filepath.Dir(path) == filepath.Clean(root) && isOutputDir(d.Name()) {
			return filepath.SkipDir
		}

		found, err := scanFolder(root, path, maskToken)
		if err != nil {
			return err
		}
		for _, p := range found {
			p.Rel = uniqueRel(p.Rel, used)
			pairs = append(pairs, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	return pairs, nil
}

// uniqueRel returns rel, or rel with a "~<n>" suffix when its flattened
// name was already taken. A synthetic "-pair<n>" name can match a real
// folder, and "a/b" flattens to the same log name as "a-b".
func uniqueRel(rel string, used map[string]bool) string {
	candidate := rel
	for n := 2; used[strings.ReplaceAll(candidate, "/", "-")]; n++ {
		candidate = fmt.Sprintf("%s~%d", rel, n)
	}
	used[strings.ReplaceAll(candidate, "/", "-")] = true
	return candidate
}

func isOutputDir(name string) bool {
	return name == LogDirName || strings.HasPrefix(name, TileDirPrefix)
}

// scanFolder pairs the image files directly inside dir
func scanFolder(root, dir, maskToken string) ([]Pair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return nil, err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		rel = ""
	}

	var pairs []Pair
	var mask, img string
	for _, e := range entries {
		if e.IsDir() || !imageio.IsImageFile(e.Name()) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		if strings.Contains(e.Name(), maskToken) {
			mask = path
		} else {
			img = path
		}

		if mask != "" && img != "" {
			pairRel := rel
			if n := len(pairs); n > 0 {
				pairRel = strings.TrimPrefix(fmt.Sprintf("%s-pair%d", rel, n+1), "-")
			}
			pairs = append(pairs, Pair{
				Dir:       dir,
				Rel:       pairRel,
				ImagePath: img,
				MaskPath:  mask,
			})
			mask, img = "", ""
		}
	}

	return pairs, nil
}
