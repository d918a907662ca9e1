package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"octtiler/internal/models"
	"octtiler/pkg/config"
	"octtiler/pkg/discovery"
	"octtiler/pkg/imageio"
	"octtiler/pkg/morphology"
	"octtiler/pkg/report"
	"octtiler/pkg/tiling"
)

// ErrLoad marks a pair whose image or mask could not be decoded.
// Such pairs are skipped and the batch continues.
var ErrLoad = errors.New("failed to load pair")

// Params holds the tiling parameters. A Params value is shared read-only by
// every pair of a run.
type Params struct {
	// ProjectDir is searched for pairs; tiles and logs are written below it
	ProjectDir string

	// TileSize is the edge length of the square tiles in pixels
	TileSize int

	// ClosingRounds is the number of dilations and then erosions applied to
	// each mask
	ClosingRounds int

	// MaskToken marks mask file names
	MaskToken string

	// Format is the extension used for tiles and debug images
	Format string

	// FullRange widens the offset search from [0, T/2) to [0, T)
	FullRange bool

	// Seed drives the debug image colours
	Seed uint64

	// DebugImage writes log/BestTile-<pair>.<ext>
	DebugImage bool

	// Report writes log/Report-<pair>.yaml
	Report bool

	// Workers is the number of pairs processed concurrently
	Workers int
}

// ParamsFromConfig validates cfg and converts it into tiling parameters
func ParamsFromConfig(cfg *config.Config) (*Params, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := imageio.NormalizeFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	return &Params{
		ProjectDir:    cfg.Project.Root,
		TileSize:      cfg.Tiling.TileSize,
		ClosingRounds: cfg.Tiling.ClosingRounds,
		MaskToken:     cfg.Tiling.MaskToken,
		Format:        format,
		FullRange:     cfg.Search.FullRange,
		Seed:          cfg.Search.Seed,
		DebugImage:    cfg.Output.DebugImage,
		Report:        cfg.Output.Report,
		Workers:       cfg.Processing.Workers,
	}, nil
}

// ProgressCallback is called after each pair finishes. With more than one
// worker it is called from several goroutines.
type ProgressCallback func(completed, total int, pair discovery.Pair)

// PairResult is the outcome of one pair
type PairResult struct {
	Pair   discovery.Pair
	Result models.AlignmentResult

	// Tiles is the number of tile files written
	Tiles int

	// TileDir is the folder the tiles were written to
	TileDir string

	// Err is set when the pair was skipped or failed
	Err error
}

// Skipped reports whether the pair never reached tiling (unreadable files
// or mismatched sizes)
func (r PairResult) Skipped() bool {
	return errors.Is(r.Err, ErrLoad) || errors.Is(r.Err, tiling.ErrSizeMismatch)
}

// Summary collects the results of a run in discovery order
type Summary struct {
	Pairs    []PairResult
	Duration time.Duration
}

// Processed returns the number of pairs tiled without error
func (s *Summary) Processed() int {
	n := 0
	for _, p := range s.Pairs {
		if p.Err == nil {
			n++
		}
	}
	return n
}

// Skipped returns the number of pairs that could not be loaded
func (s *Summary) Skipped() int {
	n := 0
	for _, p := range s.Pairs {
		if p.Skipped() {
			n++
		}
	}
	return n
}

// Failed returns the number of pairs that failed while writing output
func (s *Summary) Failed() int {
	return len(s.Pairs) - s.Processed() - s.Skipped()
}

// Tiles returns the total number of tile files written
func (s *Summary) Tiles() int {
	n := 0
	for _, p := range s.Pairs {
		n += p.Tiles
	}
	return n
}

// Tiler runs the close, search and extract stages over every pair of a
// project folder
type Tiler struct {
	params   *Params
	logger   *slog.Logger
	progress ProgressCallback
}

// NewTiler creates a tiler with the provided parameters
func NewTiler(params *Params) *Tiler {
	return &Tiler{
		params: params,
		logger: newNopLogger(),
	}
}

// SetProgressCallback sets a callback invoked after every pair
func (t *Tiler) SetProgressCallback(callback ProgressCallback) {
	t.progress = callback
}

// Process discovers all pairs and tiles them. A pair that fails is recorded
// in the summary and does not stop the batch; only failing to scan the
// project folder is returned as an error.
func (t *Tiler) Process() (*Summary, error) {
	start := time.Now()

	pairs, err := discovery.Scan(t.params.ProjectDir, t.params.MaskToken)
	if err != nil {
		return nil, err
	}
	t.logger.Info("discovered pairs", "project", t.params.ProjectDir, "pairs", len(pairs))

	results := make([]PairResult, len(pairs))
	var completed atomic.Int64

	var g errgroup.Group
	g.SetLimit(max(t.params.Workers, 1))
	for i, pair := range pairs {
		g.Go(func() error {
			results[i] = t.runPair(pair)
			done := completed.Add(1)
			if t.progress != nil {
				t.progress(int(done), len(pairs), pair)
			}
			return nil
		})
	}
	// runPair never returns an error to the group
	_ = g.Wait()

	return &Summary{Pairs: results, Duration: time.Since(start)}, nil
}

func (t *Tiler) runPair(pair discovery.Pair) PairResult {
	res, err := t.ProcessPair(pair)
	if err != nil {
		t.logger.Warn("pair not tiled", "pair", pair.Rel, "error", err)
		res.Err = err
	}
	return res
}

// ProcessPair tiles a single pair: load, close the mask, search the best
// offset, create the tile folder and write every valid tile. The debug image
// and the report are written last; failing to write them is logged but does
// not fail the pair.
func (t *Tiler) ProcessPair(pair discovery.Pair) (PairResult, error) {
	res := PairResult{Pair: pair}
	log := t.logger.With("pair", pair.Rel)
	log.Info("processing pair", "image", pair.ImagePath, "mask", pair.MaskPath)

	img, err := imageio.Load(pair.ImagePath)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	mask, err := imageio.Load(pair.MaskPath)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if !img.SameSize(mask) {
		return res, fmt.Errorf("%w: image %dx%d, mask %dx%d", tiling.ErrSizeMismatch,
			img.Width, img.Height, mask.Width, mask.Height)
	}
	log.Debug("loaded pair", "width", img.Width, "height", img.Height)

	stageStart := time.Now()
	closed := morphology.Close(mask, t.params.ClosingRounds)
	log.Debug("closed mask", "rounds", t.params.ClosingRounds, "elapsed", time.Since(stageStart))

	stageStart = time.Now()
	result, vis := tiling.Search(closed, tiling.SearchOptions{
		TileSize:  t.params.TileSize,
		FullRange: t.params.FullRange,
		Visualize: t.params.DebugImage,
		Seed1:     t.params.Seed,
		Seed2:     pairSeed(pair),
	})
	res.Result = result
	log.Info("best alignment", "offset", result.Offset.String(), "tiles", result.Count, "elapsed", time.Since(stageStart))

	res.TileDir = t.TileDir(pair)
	if err := os.MkdirAll(res.TileDir, 0755); err != nil {
		return res, fmt.Errorf("failed to create tile directory: %w", err)
	}

	var rep *report.PairReport
	if t.params.Report {
		rep = report.New(pair.ImagePath, pair.MaskPath, img.Width, img.Height, t.params.TileSize)
		rep.ClosingRounds = t.params.ClosingRounds
		rep.FullRange = t.params.FullRange
		rep.CoverageRaw = report.Coverage(mask)
		rep.CoverageClosed = report.Coverage(closed)
		rep.SetResult(result)
	}

	res.Tiles, err = tiling.Extract(img, closed, result.Offset, t.params.TileSize, func(tile models.Tile) error {
		name := tile.FileName(t.params.Format)
		if err := imageio.Save(filepath.Join(res.TileDir, name), tiling.TileImage(tile)); err != nil {
			return err
		}
		log.Debug("saved tile", "tx", tile.TX, "ty", tile.TY)
		if rep != nil {
			rep.AddTile(tile, name)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to write tiles: %w", err)
	}

	if vis != nil {
		if err := t.saveLog(t.BestTilePath(pair), func(path string) error { return imageio.Save(path, vis) }); err != nil {
			log.Warn("failed to save debug image", "error", err)
		}
	}
	if rep != nil {
		if err := t.saveLog(t.ReportPath(pair), rep.Write); err != nil {
			log.Warn("failed to save report", "error", err)
		}
	}

	return res, nil
}

// saveLog creates the log folder and runs write for path
func (t *Tiler) saveLog(path string, write func(string) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return write(path)
}

// TileDir returns <project>/TILES-<T>x<T>/<rel>
func (t *Tiler) TileDir(pair discovery.Pair) string {
	size := t.params.TileSize
	return filepath.Join(t.params.ProjectDir,
		fmt.Sprintf("%s%dx%d", discovery.TileDirPrefix, size, size),
		filepath.FromSlash(pair.Rel))
}

// LogDir returns <project>/log
func (t *Tiler) LogDir() string {
	return filepath.Join(t.params.ProjectDir, discovery.LogDirName)
}

// BestTilePath returns <project>/log/BestTile-<pair name>.<ext>
func (t *Tiler) BestTilePath(pair discovery.Pair) string {
	return filepath.Join(t.LogDir(), logFileName("BestTile", pair, t.params.Format))
}

// ReportPath returns <project>/log/Report-<pair name>.yaml
func (t *Tiler) ReportPath(pair discovery.Pair) string {
	return filepath.Join(t.LogDir(), logFileName("Report", pair, "yaml"))
}

func logFileName(prefix string, pair discovery.Pair, ext string) string {
	if name := pair.Name(); name != "" {
		return prefix + "-" + name + "." + ext
	}
	return prefix + "." + ext
}

// pairSeed derives a per-pair seed word so pairs get different colours
// while every run stays reproducible
func pairSeed(pair discovery.Pair) uint64 {
	sum := blake3.Sum256([]byte(pair.Rel))
	return binary.LittleEndian.Uint64(sum[:8])
}
