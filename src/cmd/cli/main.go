package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"screen-gif-capture/src/capture"
	"screen-gif-capture/src/config"
	"screen-gif-capture/src/gifenc"
	"screen-gif-capture/src/logutil"
	"screen-gif-capture/src/screenshot"
)

type cliOptions struct {
	configPath string
	outputPath string
	jsonOutput bool
	verbose    bool

	region     string
	keepFrames bool
	dir        string
}

// newBackend is replaced in tests.
var newBackend = screenshot.NewBackend

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(os.Args)
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"gifsnap"}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(&cliOptions{}, os.Stdout)
	cmd.SetArgs(args[1:])
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(opts *cliOptions, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gifsnap",
		Short:         "Capture screen regions and assemble animated GIFs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Configure logging BEFORE any other operations.
			if opts.verbose {
				logutil.ToStderr()
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to TOML config file")
	pf.StringVarP(&opts.outputPath, "output", "o", "", "Path of the produced GIF (overrides OUTPUT_PATH)")
	pf.BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	cmd.AddCommand(newCaptureCmd(opts, stdout), newAssembleCmd(opts, stdout), newDisplaysCmd(stdout))
	return cmd
}

func newCaptureCmd(opts *cliOptions, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Record a burst of the given region and encode it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd.Context(), *opts, stdout)
		},
	}
	cmd.Flags().StringVar(&opts.region, "region", "", "Region as x,y,width,height in screen coordinates")
	cmd.Flags().BoolVar(&opts.keepFrames, "keep-frames", false, "Keep the captured PNG frames")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

func newAssembleCmd(opts *cliOptions, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Encode a directory of PNG frames into an animated GIF",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(*opts, stdout)
		},
	}
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory holding the frames")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func newDisplaysCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "displays",
		Short: "List active displays and their bounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			bounds, err := screenshot.DisplayBounds()
			if err != nil {
				return err
			}
			for i, b := range bounds {
				fmt.Fprintf(stdout, "%d\t%d,%d,%d,%d\n", i, b.Min.X, b.Min.Y, b.Dx(), b.Dy())
			}
			return nil
		},
	}
}

func loadConfig(opts cliOptions) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ConfigPathOverride: opts.configPath,
		OutputPathOverride: opts.outputPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// parseRegion reads "x,y,width,height".
func parseRegion(s string) (screenshot.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return screenshot.Region{}, fmt.Errorf("region %q: expected x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return screenshot.Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] < 0 || v[3] < 0 {
		return screenshot.Region{}, fmt.Errorf("region %q: negative size", s)
	}
	return screenshot.RegionFrom(screenshot.Point{X: v[0], Y: v[1]}, screenshot.Point{X: v[0] + v[2], Y: v[1] + v[3]}), nil
}

func runCapture(ctx context.Context, opts cliOptions, stdout io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	region, err := parseRegion(opts.region)
	if err != nil {
		return err
	}
	job, err := capture.NewJob(region, cfg.ScratchDir, cfg.FrameCount, cfg.FrameInterval)
	if err != nil {
		return err
	}
	bar := progressbar.NewOptions(job.FrameCount,
		progressbar.OptionSetDescription("Capturing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	started := time.Now()
	if _, err := capture.New(newBackend(), nil).Capture(ctx, job, func(done, total int) {
		_ = bar.Set(done)
	}); err != nil {
		return err
	}
	_ = bar.Finish()

	// Frames stay on disk when capture or assembly fails.
	art, err := gifenc.Assemble(job.OutputDir, cfg.OutputPath, gifenc.Options{Delay: cfg.FrameDelay})
	if err != nil {
		return err
	}
	if !opts.keepFrames && !cfg.KeepFrames {
		if err := os.RemoveAll(job.OutputDir); err != nil {
			log.Printf("Failed to remove %s: %v", job.OutputDir, err)
		}
	}
	return outputResult(stdout, art, job.OutputDir, time.Since(started), opts.jsonOutput)
}

func runAssemble(opts cliOptions, stdout io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	started := time.Now()
	art, err := gifenc.Assemble(opts.dir, cfg.OutputPath, gifenc.Options{Delay: cfg.FrameDelay})
	if err != nil {
		return err
	}
	return outputResult(stdout, art, opts.dir, time.Since(started), opts.jsonOutput)
}

type GIFResult struct {
	Path      string  `json:"path"`
	Source    string  `json:"source"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Frames    int     `json:"frames"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
}

func outputResult(w io.Writer, art gifenc.Artifact, source string, elapsed time.Duration, jsonOutput bool) error {
	if !jsonOutput {
		fmt.Fprintln(w, art.Path)
		return nil
	}
	result := GIFResult{
		Path:      art.Path,
		Source:    source,
		Width:     art.Width,
		Height:    art.Height,
		Frames:    art.FrameCount,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
