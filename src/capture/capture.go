package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"screen-gif-capture/src/screenshot"
)

const (
	DefaultFrameCount    = 3
	DefaultFrameInterval = time.Second
	// FrameExt is the extension of persisted frames.
	FrameExt = ".png"
)

var (
	ErrDegenerateRegion    = errors.New("selection has zero width or height")
	ErrRegionSpansDisplays = errors.New("selection spans more than one display")
	ErrCancelled           = errors.New("capture cancelled")
)

// CaptureError reports which frame of a job failed and at which step.
// Frame is 1-based; 0 means the job was rejected before any capture.
type CaptureError struct {
	JobID string
	Frame int
	Op    string
	Err   error
}

func (e *CaptureError) Error() string {
	if e.Frame == 0 {
		return fmt.Sprintf("capture %s: %s: %v", e.JobID, e.Op, e.Err)
	}
	return fmt.Sprintf("capture %s frame %d: %s: %v", e.JobID, e.Frame, e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Job is one burst capture, writing into a directory no other job uses.
type Job struct {
	ID            string
	Region        screenshot.Region
	FrameCount    int
	FrameInterval time.Duration
	OutputDir     string
}

// NewJob validates region and allocates a fresh directory under scratchRoot.
// count<=0 and interval<=0 fall back to the defaults.
func NewJob(region screenshot.Region, scratchRoot string, count int, interval time.Duration) (Job, error) {
	if region.Degenerate() {
		return Job{}, &CaptureError{Op: "validate", Err: fmt.Errorf("%w: %v", ErrDegenerateRegion, region)}
	}
	if count <= 0 {
		count = DefaultFrameCount
	}
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	id := uuid.NewString()
	return Job{
		ID:            id,
		Region:        region,
		FrameCount:    count,
		FrameInterval: interval,
		OutputDir:     filepath.Join(scratchRoot, id),
	}, nil
}

// Frame is one persisted image of a job.
type Frame struct {
	Index  int
	Path   string
	Width  int
	Height int
}

// Result lists the frames written by a successful job, in capture order.
type Result struct {
	Job    Job
	Frames []Frame
}

// FrameName builds the frame filename. The zero-padded index keeps
// lexical and capture order identical.
func FrameName(index, width, height int) string {
	return fmt.Sprintf("frame-%04d-%dx%d%s", index, width, height, FrameExt)
}

// Saver persists an image losslessly.
type Saver interface {
	Save(img image.Image, path string) error
}

// PNGSaver writes PNG files.
type PNGSaver struct{}

func (PNGSaver) Save(img image.Image, path string) error {
	return imaging.Save(img, path)
}

// ProgressFunc is called after each frame is persisted.
type ProgressFunc func(done, total int)

// Orchestrator runs burst captures. It blocks for the whole burst and must
// be driven from a worker, never from the input goroutine.
type Orchestrator struct {
	backend screenshot.Backend
	saver   Saver

	now  func() time.Time
	wait func(ctx context.Context, until time.Time) error
}

// New creates an orchestrator; a nil saver uses PNGSaver.
func New(backend screenshot.Backend, saver Saver) *Orchestrator {
	if saver == nil {
		saver = PNGSaver{}
	}
	return &Orchestrator{backend: backend, saver: saver, now: time.Now, wait: sleepUntil}
}

// Capture takes job.FrameCount frames spaced by job.FrameInterval, measured
// from the job start. On failure the remaining frames are skipped and the
// frames already written stay on disk. On cancellation the directory is removed.
func (o *Orchestrator) Capture(ctx context.Context, job Job, progress ProgressFunc) (Result, error) {
	res := Result{Job: job}
	if job.Region.Degenerate() {
		return res, &CaptureError{JobID: job.ID, Op: "validate", Err: ErrDegenerateRegion}
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return res, &CaptureError{JobID: job.ID, Op: "mkdir", Err: err}
	}

	log.Printf("Capture: job %s starting, %d frames of %v every %v", job.ID, job.FrameCount, job.Region, job.FrameInterval)
	start := o.now()
	for i := 1; i <= job.FrameCount; i++ {
		if err := ctx.Err(); err != nil {
			return res, o.discard(job, i, err)
		}

		frame, err := o.captureFrame(job, i)
		if err != nil {
			log.Printf("Capture: job %s aborted: %v", job.ID, err)
			return res, err
		}
		res.Frames = append(res.Frames, frame)
		log.Printf("Capture: frame %d/%d saved to %s", i, job.FrameCount, frame.Path)
		if progress != nil {
			progress(i, job.FrameCount)
		}

		if i == job.FrameCount {
			break
		}
		if err := o.wait(ctx, start.Add(time.Duration(i)*job.FrameInterval)); err != nil {
			return res, o.discard(job, i+1, err)
		}
	}
	return res, nil
}

func (o *Orchestrator) captureFrame(job Job, index int) (Frame, error) {
	fail := func(op string, err error) (Frame, error) {
		return Frame{}, &CaptureError{JobID: job.ID, Frame: index, Op: op, Err: err}
	}

	// Resolved per frame: displays may be reconfigured mid-burst.
	display, err := o.backend.DisplayAt(job.Region.Origin())
	if err != nil {
		return fail("resolve display", err)
	}
	rect := job.Region.Rect()
	if !rect.In(display.Bounds()) {
		return fail("resolve display", fmt.Errorf("%w: %v not within display %d %v", ErrRegionSpansDisplays, job.Region, display.Index(), display.Bounds()))
	}

	img, err := display.Capture()
	if err != nil {
		return fail("capture", err)
	}
	if !rect.In(img.Bounds()) {
		return fail("crop", fmt.Errorf("captured image %v does not contain %v", img.Bounds(), rect))
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Copy(dst, image.Point{}, img, rect, xdraw.Src, nil)

	path := filepath.Join(job.OutputDir, FrameName(index, rect.Dx(), rect.Dy()))
	if err := o.saver.Save(dst, path); err != nil {
		return fail("save", err)
	}
	return Frame{Index: index, Path: path, Width: rect.Dx(), Height: rect.Dy()}, nil
}

func (o *Orchestrator) discard(job Job, index int, cause error) error {
	if err := os.RemoveAll(job.OutputDir); err != nil {
		log.Printf("Capture: failed to discard %s: %v", job.OutputDir, err)
	}
	log.Printf("Capture: job %s cancelled before frame %d", job.ID, index)
	return &CaptureError{JobID: job.ID, Frame: index, Op: "cancel", Err: fmt.Errorf("%w: %w", ErrCancelled, cause)}
}

func sleepUntil(ctx context.Context, until time.Time) error {
	d := time.Until(until)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
