package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"screen-gif-capture/src/capture"
	"screen-gif-capture/src/clipboard"
	"screen-gif-capture/src/config"
	"screen-gif-capture/src/cursor"
	"screen-gif-capture/src/eventloop"
	"screen-gif-capture/src/hotkey"
	"screen-gif-capture/src/input"
	"screen-gif-capture/src/logutil"
	"screen-gif-capture/src/messages"
	"screen-gif-capture/src/overlay"
	"screen-gif-capture/src/screenshot"
	"screen-gif-capture/src/singleinstance"
	"screen-gif-capture/src/worker"
)

const handshakeText = "Hello from core!"

type mainOptions struct {
	configPath string
	outputPath string
}

// deps are the OS-facing collaborators; tests replace them with fakes.
type deps struct {
	source  input.Source
	locator cursor.Locator
	backend screenshot.Backend
	stdout  io.Writer
	copy    func(string) error
}

func main() {
	// Ensure DPI awareness before the hook or capture backend touch coordinates
	enableDPIAwareness()

	if err := newRootCmd(&mainOptions{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-gif",
		Short:         "Drag a rectangle anywhere on screen to record it as an animated GIF",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMain(cmd.Context(), *opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to TOML config file (overrides SCREEN_GIF_CONFIG)")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Path of the produced GIF (overrides OUTPUT_PATH)")
	return cmd
}

func runMain(parent context.Context, opts mainOptions) error {
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ConfigPathOverride: opts.configPath,
		OutputPathOverride: opts.outputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logutil.Setup(cfg.EnableFileLogging)

	d := deps{
		source:  input.NewHookSource(),
		locator: cursor.New(),
		backend: screenshot.NewBackend(),
		stdout:  os.Stdout,
	}
	if cfg.CopyPathToClipboard {
		if err := clipboard.Init(); err != nil {
			log.Printf("Clipboard unavailable, GIF paths will not be copied: %v", err)
		} else {
			d.copy = clipboard.Write
		}
	}
	logDisplays()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if cfg.ResidentPort > 0 {
		guard, err := singleinstance.Acquire(ctx, cfg.ResidentPort)
		if err != nil {
			if errors.Is(err, singleinstance.ErrAlreadyRunning) {
				fmt.Fprintf(os.Stderr, "one is already running on port %d\n", cfg.ResidentPort)
			}
			return err
		}
		defer guard.Close()
		log.Printf("Resident guard on port %d", guard.Port())
	}

	// Handle SIGINT/SIGTERM
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			log.Printf("Signal received, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()

	return runResident(ctx, cfg, d)
}

// runResident wires input, overlay bus, worker pool and event loop, and
// blocks until ctx is cancelled or the input hook gives up.
func runResident(ctx context.Context, cfg *config.Config, d deps) error {
	arm, err := hotkey.Parse(cfg.ArmHotkey)
	if err != nil {
		return fmt.Errorf("invalid ARM_HOTKEY: %w", err)
	}
	if err := os.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := overlay.NewBus(overlay.DefaultBufferSize)
	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		_ = overlay.NewJSONSink(d.stdout).Run(ctx, bus.Messages())
	}()
	bus.Notify(messages.Handshake{Text: handshakeText})

	log.Printf("Screen GIF initialized")
	log.Printf("Output: %s", cfg.OutputPath)
	log.Printf("Frames: %d every %v, delay %v", cfg.FrameCount, cfg.FrameInterval, cfg.FrameDelay)
	if !arm.Empty() {
		log.Printf("Arm hotkey: %s", arm)
	}

	svc := input.NewService(input.Options{
		Source:      d.source,
		Locator:     d.locator,
		Publisher:   bus,
		Throttle:    cfg.Throttle,
		Arm:         arm,
		MaxRestarts: cfg.HookMaxRestarts,
	})
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	pool := worker.New(1, worker.Config{
		Orchestrator: capture.New(d.backend, nil),
		OutputPath:   cfg.OutputPath,
		Delay:        cfg.FrameDelay,
		KeepFrames:   cfg.KeepFrames,
	})
	defer pool.Close()

	loop := eventloop.New(eventloop.Options{
		Gestures:      svc.Gestures(),
		Notifier:      bus,
		Pool:          pool,
		ScratchDir:    cfg.ScratchDir,
		FrameCount:    cfg.FrameCount,
		FrameInterval: cfg.FrameInterval,
		AbortOnPress:  cfg.AbortOnPress,
		Copy:          d.copy,
	})

	go func() {
		select {
		case <-svc.Done():
			if err := svc.Err(); err != nil {
				log.Printf("Input service stopped: %v", err)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	err = loop.Run(ctx)
	cancel()
	<-sinkDone
	bus.Close()

	if hookErr := svc.Err(); hookErr != nil {
		return hookErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func logDisplays() {
	bounds, err := screenshot.DisplayBounds()
	if err != nil {
		log.Printf("MONITOR: %v", err)
		return
	}
	log.Printf("MONITOR: Detected %d displays", len(bounds))
	for i, b := range bounds {
		log.Printf("MONITOR: display %d at %v", i, b)
	}
}
