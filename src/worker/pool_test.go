package worker

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"screen-gif-capture/src/capture"
	"screen-gif-capture/src/gifenc"
	"screen-gif-capture/src/screenshot"
)

type stubDisplay struct{ bounds image.Rectangle }

func (d stubDisplay) Index() int              { return 0 }
func (d stubDisplay) Bounds() image.Rectangle { return d.bounds }
func (d stubDisplay) Capture() (*image.RGBA, error) {
	return image.NewRGBA(d.bounds), nil
}

type stubBackend struct{ fail bool }

func (b stubBackend) DisplayAt(p screenshot.Point) (screenshot.Display, error) {
	if b.fail {
		return nil, screenshot.ErrNoDisplay
	}
	return stubDisplay{bounds: image.Rect(0, 0, 640, 480)}, nil
}

// flakyBackend resolves a display until call number failOn.
type flakyBackend struct {
	mu     sync.Mutex
	calls  int
	failOn int
}

func (b *flakyBackend) DisplayAt(p screenshot.Point) (screenshot.Display, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls >= b.failOn {
		return nil, screenshot.ErrNoDisplay
	}
	return stubDisplay{bounds: image.Rect(0, 0, 640, 480)}, nil
}

func newPool(t *testing.T, backend screenshot.Backend, keep bool) (*Pool, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "capture.gif")
	p := New(1, Config{
		Orchestrator: capture.New(backend, nil),
		OutputPath:   out,
		KeepFrames:   keep,
	})
	return p, out
}

func newJob(t *testing.T, interval time.Duration) capture.Job {
	t.Helper()
	j, err := capture.NewJob(screenshot.Region{X: 100, Y: 100, Width: 200, Height: 300}, t.TempDir(), 3, interval)
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	return j
}

func await(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	return Result{}
}

func TestPoolCapturesAndAssembles(t *testing.T) {
	p, out := newPool(t, stubBackend{}, false)
	defer p.Close()

	j := newJob(t, time.Millisecond)
	done := make(chan Result, 1)
	if !p.Submit(context.Background(), j, func(r Result) { done <- r }) {
		t.Fatal("submit should succeed")
	}
	r := await(t, done)
	if r.Err != nil {
		t.Fatalf("job failed: %v", r.Err)
	}
	if r.Artifact.FrameCount != 3 || r.Artifact.Width != 200 || r.Artifact.Height != 300 {
		t.Fatalf("Unexpected artifact %+v", r.Artifact)
	}
	if got, err := gifenc.Inspect(out); err != nil || got.FrameCount != 3 {
		t.Fatalf("Expected 3-frame GIF on disk, got %+v err=%v", got, err)
	}
	if _, err := os.Stat(j.OutputDir); !os.IsNotExist(err) {
		t.Fatal("Expected frame directory to be cleaned up")
	}
}

func TestPoolSkipsAssemblyOnCaptureFailure(t *testing.T) {
	p, out := newPool(t, stubBackend{fail: true}, false)
	defer p.Close()

	done := make(chan Result, 1)
	p.Submit(context.Background(), newJob(t, time.Millisecond), func(r Result) { done <- r })
	r := await(t, done)

	var ce *capture.CaptureError
	if !errors.As(r.Err, &ce) || ce.Frame != 1 {
		t.Fatalf("Expected frame 1 CaptureError, got %v", r.Err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("Expected no GIF after a failed capture")
	}
}

func TestPoolKeepsPartialFramesOnFailure(t *testing.T) {
	p, out := newPool(t, &flakyBackend{failOn: 2}, false)
	defer p.Close()

	j := newJob(t, time.Millisecond)
	done := make(chan Result, 1)
	p.Submit(context.Background(), j, func(r Result) { done <- r })
	r := await(t, done)

	var ce *capture.CaptureError
	if !errors.As(r.Err, &ce) || ce.Frame != 2 {
		t.Fatalf("Expected frame 2 CaptureError, got %v", r.Err)
	}
	entries, err := os.ReadDir(j.OutputDir)
	if err != nil {
		t.Fatalf("Expected frame directory to survive the failure: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != capture.FrameName(1, 200, 300) {
		t.Fatalf("Expected only frame 1 on disk, got %v", entries)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("Expected no GIF after a failed capture")
	}
}

func TestPoolSubmitDropWhenBusy(t *testing.T) {
	p, _ := newPool(t, stubBackend{}, true)
	defer p.Close()
	ctx := context.Background()

	done := make(chan Result, 3)
	cb := func(r Result) { done <- r }
	// First submit occupies the single queue slot or worker
	if !p.Submit(ctx, newJob(t, 50*time.Millisecond), cb) {
		t.Fatal("first submit should succeed")
	}
	ok2 := p.Submit(ctx, newJob(t, 50*time.Millisecond), cb)
	// Third submit must drop given 1-slot queue and one in-flight
	ok3 := p.Submit(ctx, newJob(t, 50*time.Millisecond), cb)
	if ok2 && ok3 {
		t.Fatal("expected at least one submit to drop due to full queue")
	}
	await(t, done)
	if ok2 || ok3 {
		await(t, done)
	}
}

func TestPoolCancelDiscardsJob(t *testing.T) {
	p, out := newPool(t, stubBackend{}, true)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	j := newJob(t, time.Hour)
	done := make(chan Result, 1)
	p.Submit(ctx, j, func(r Result) { done <- r })
	time.Sleep(20 * time.Millisecond)
	cancel()

	r := await(t, done)
	if !errors.Is(r.Err, capture.ErrCancelled) {
		t.Fatalf("Expected ErrCancelled, got %v", r.Err)
	}
	if _, err := os.Stat(j.OutputDir); !os.IsNotExist(err) {
		t.Fatal("Expected cancelled job directory to be discarded")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("Expected no GIF for a cancelled job")
	}
}

func TestPoolKeepFramesLeavesDirectory(t *testing.T) {
	p, _ := newPool(t, stubBackend{}, true)
	defer p.Close()

	j := newJob(t, time.Millisecond)
	done := make(chan Result, 1)
	p.Submit(context.Background(), j, func(r Result) { done <- r })
	if r := await(t, done); r.Err != nil {
		t.Fatalf("job failed: %v", r.Err)
	}
	entries, err := os.ReadDir(j.OutputDir)
	if err != nil || len(entries) != 3 {
		t.Fatalf("Expected 3 kept frames, got %d (err=%v)", len(entries), err)
	}
}
