package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"octtiler/internal/logger"
	"octtiler/pkg/config"
	"octtiler/pkg/discovery"
	"octtiler/pkg/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one tiling batch and returns the process exit code, so
// deferred cleanup happens before the process exits
func run(args []string) int {
	flags := pflag.NewFlagSet("octtiler", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "octtiler.yaml", "YAML configuration file (optional)")
	project := flags.StringP("project", "p", "", "Project folder containing image/mask pairs")
	tileSize := flags.IntP("tile-size", "s", 80, "Edge length of the square tiles in pixels")
	rounds := flags.IntP("rounds", "r", 3, "Morphological closing rounds applied to each mask")
	maskToken := flags.String("mask-token", "Mask", "Substring that marks a file as a mask")
	format := flags.StringP("format", "f", "tif", "Output image format (tif, png, bmp)")
	fullRange := flags.Bool("full-range", false, "Search offsets in [0, tile) instead of [0, tile/2)")
	seed := flags.Uint64("seed", 1, "Seed for the debug image colours")
	workers := flags.IntP("workers", "w", 1, "Number of pairs processed concurrently")
	noDebug := flags.Bool("no-debug-image", false, "Do not write log/BestTile-* images")
	noReport := flags.Bool("no-report", false, "Do not write log/Report-*.yaml")
	verbose := flags.BoolP("verbose", "v", false, "Write debug records to the log file")
	writeConfig := flags.String("write-config", "", "Write the default configuration to this path and exit")
	if err := flags.Parse(args); err != nil {
		// pflag has already printed the error and usage
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			return 1
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return 0
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Flags given on the command line win over the file
	changed := flags.Changed
	if changed("project") {
		cfg.Project.Root = *project
	}
	if changed("tile-size") {
		cfg.Tiling.TileSize = *tileSize
	}
	if changed("rounds") {
		cfg.Tiling.ClosingRounds = *rounds
	}
	if changed("mask-token") {
		cfg.Tiling.MaskToken = *maskToken
	}
	if changed("format") {
		cfg.Output.Format = *format
	}
	if changed("full-range") {
		cfg.Search.FullRange = *fullRange
	}
	if changed("seed") {
		cfg.Search.Seed = *seed
	}
	if changed("workers") {
		cfg.Processing.Workers = *workers
	}
	if *noDebug {
		cfg.Output.DebugImage = false
	}
	if *noReport {
		cfg.Output.Report = false
	}

	params, err := pipeline.ParamsFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		flags.Usage()
		return 1
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logFile, log, err := logger.Init(filepath.Join(params.ProjectDir, discovery.LogDirName, "octtiler.log"), level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logFile.Close()

	tiler := pipeline.NewTiler(params)
	tiler.SetLogger(log)

	fmt.Printf("Tiling %s with %dx%d tiles (%d closing rounds)\n",
		params.ProjectDir, params.TileSize, params.TileSize, params.ClosingRounds)

	var completed, total atomic.Int64
	tiler.SetProgressCallback(func(done, all int, pair discovery.Pair) {
		completed.Store(int64(done))
		total.Store(int64(all))
	})

	done := make(chan struct{})
	var spinnerWg sync.WaitGroup
	spinnerWg.Add(1)
	go func() {
		defer spinnerWg.Done()
		s := spinner.New()
		s.Spinner = spinner.Dot
		s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				fmt.Print("\r\033[K")
				return
			case <-ticker.C:
				s, _ = s.Update(spinner.TickMsg{})
				fmt.Printf("\r%s Tiling pairs %d/%d...", s.View(), completed.Load(), total.Load())
			}
		}
	}()

	summary, err := tiler.Process()
	close(done)
	spinnerWg.Wait()

	if err != nil {
		log.Error("tiling failed", "error", err)
		fmt.Fprintf(os.Stderr, "Tiling failed: %v\n", err)
		return 1
	}

	printSummary(summary)
	if summary.Failed() > 0 {
		return 1
	}
	return 0
}

// printSummary prints one line per pair followed by the totals
func printSummary(summary *pipeline.Summary) {
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	durationStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("202"))

	for _, p := range summary.Pairs {
		name := p.Pair.Rel
		if name == "" {
			name = "."
		}
		switch {
		case p.Err == nil:
			fmt.Printf("%s %s: %d tiles at offset %s\n",
				okStyle.Render("✓"), name, p.Tiles, p.Result.Offset)
		case p.Skipped():
			fmt.Printf("%s %s: skipped (%v)\n", warnStyle.Render("-"), name, p.Err)
		default:
			fmt.Printf("%s %s: failed (%v)\n", errStyle.Render("✗"), name, p.Err)
		}
	}

	fmt.Printf("\nPairs: %d processed, %d skipped, %d failed\n",
		summary.Processed(), summary.Skipped(), summary.Failed())
	fmt.Printf("Tiles written: %d\n", summary.Tiles())
	fmt.Printf("Total processing time: %s\n", durationStyle.Render(fmt.Sprintf("%.2fs", summary.Duration.Seconds())))
}
