package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"screen-gif-capture/src/capture"
	"screen-gif-capture/src/gifenc"
)

// Result is the outcome of one capture-and-encode job.
type Result struct {
	Job      capture.Job
	Frames   []capture.Frame
	Artifact gifenc.Artifact
	Err      error
}

// ResultCallback is invoked on job completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the event loop safely.
type ResultCallback func(Result)

// Config wires the pool to the capture and encode stages.
type Config struct {
	Orchestrator *capture.Orchestrator
	OutputPath   string
	Delay        time.Duration
	// KeepFrames leaves the frame directory in place after a successful job.
	KeepFrames bool
	Progress   capture.ProgressFunc
}

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	cfg  Config
	jobs chan job
	wg   sync.WaitGroup
}

type job struct {
	ctx context.Context
	job capture.Job
	cb  ResultCallback
}

// New creates a worker pool. Size defaults to 1 when size<=0: jobs share the
// output path, so more workers only help with distinct outputs. Queue is 1 slot.
func New(size int, cfg Config) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{cfg: cfg, jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				log.Printf("Worker: starting job %s for region %v", j.job.ID, j.job.Region)
				res := p.run(j.ctx, j.job)
				log.Printf("Worker: job %s completed, err=%v", j.job.ID, res.Err)
				j.cb(res)
			}
		}()
	}
}

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, j capture.Job, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, job: j, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// run captures the burst and, only if every frame succeeded, assembles the GIF.
// Frames of a failed job stay on disk; cancelled jobs are discarded.
func (p *Pool) run(ctx context.Context, j capture.Job) Result {
	res := Result{Job: j}

	captured, err := p.cfg.Orchestrator.Capture(ctx, j, p.cfg.Progress)
	res.Frames = captured.Frames
	if err != nil {
		res.Err = err
		return res
	}

	if err := ctx.Err(); err != nil {
		p.discard(j.OutputDir)
		res.Err = &capture.CaptureError{JobID: j.ID, Frame: j.FrameCount, Op: "cancel", Err: fmt.Errorf("%w: %w", capture.ErrCancelled, err)}
		return res
	}

	art, err := gifenc.Assemble(j.OutputDir, p.cfg.OutputPath, gifenc.Options{Delay: p.cfg.Delay})
	if err != nil {
		res.Err = err
		return res
	}
	res.Artifact = art
	if !p.cfg.KeepFrames {
		p.discard(j.OutputDir)
	}
	return res
}

func (p *Pool) discard(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("Worker: failed to remove %s: %v", dir, err)
	}
}
