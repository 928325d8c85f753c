package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"screen-gif-capture/src/capture"
	"screen-gif-capture/src/input"
	"screen-gif-capture/src/messages"
	"screen-gif-capture/src/worker"
)

// Notifier delivers status messages to the UI context.
type Notifier interface {
	Notify(msg messages.Message) bool
}

// Submitter runs capture jobs off the event loop. worker.Pool satisfies it.
type Submitter interface {
	Submit(ctx context.Context, job capture.Job, cb worker.ResultCallback) bool
}

// Options configures a Loop.
type Options struct {
	Gestures      <-chan input.Gesture
	Notifier      Notifier
	Pool          Submitter
	ScratchDir    string
	FrameCount    int
	FrameInterval time.Duration
	// AbortOnPress cancels the in-flight job as soon as a new drag starts.
	AbortOnPress bool
	// Copy, when set, receives the path of every produced GIF.
	Copy func(text string) error
}

// Loop is the single-threaded coordinator between completed gestures,
// capture jobs and the UI.
type Loop struct {
	opts     Options
	results  chan worker.Result
	inflight map[string]context.CancelFunc
	// pending is the newest selection, held while a cancelled job still
	// occupies the worker.
	pending *capture.Job
	done    chan struct{}
}

// New creates a loop. Run must be called exactly once.
func New(opts Options) *Loop {
	return &Loop{
		opts:     opts,
		results:  make(chan worker.Result, 1),
		inflight: make(map[string]context.CancelFunc),
		done:     make(chan struct{}),
	}
}

// Run processes gestures and job results until ctx is cancelled or the
// gesture channel closes. In-flight jobs are cancelled on return.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer l.cancelAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case g, ok := <-l.opts.Gestures:
			if !ok {
				return nil
			}
			l.handleGesture(ctx, g)
		case res := <-l.results:
			l.handleResult(ctx, res)
		}
	}
}

func (l *Loop) handleGesture(ctx context.Context, g input.Gesture) {
	switch g.Kind {
	case input.GestureStarted:
		if l.opts.AbortOnPress && len(l.inflight) > 0 {
			log.Printf("handleGesture: drag started at %v, aborting %d job(s)", g.Anchor, len(l.inflight))
			l.cancelAll()
			l.dropPending("cancelled")
		}
	case input.GestureCompleted:
		l.startJob(ctx, g)
	}
}

func (l *Loop) startJob(ctx context.Context, g input.Gesture) {
	job, err := capture.NewJob(g.Region, l.opts.ScratchDir, l.opts.FrameCount, l.opts.FrameInterval)
	if err != nil {
		log.Printf("startJob: rejected region %v: %v", g.Region, err)
		l.notify(messages.CaptureFailed{Reason: err.Error()})
		return
	}

	// A newer selection supersedes whatever is still capturing or waiting.
	l.cancelAll()
	l.dropPending("superseded")

	if l.submit(ctx, job) {
		return
	}
	if len(l.inflight) > 0 {
		// The worker frees up once the cancelled jobs report back.
		log.Printf("startJob: worker draining %d cancelled job(s), holding job %s", len(l.inflight), job.ID)
		l.pending = &job
		return
	}
	log.Printf("startJob: worker busy, dropping job %s", job.ID)
	l.notify(messages.CaptureFailed{JobID: job.ID, Reason: "Busy, please retry"})
}

func (l *Loop) submit(ctx context.Context, job capture.Job) bool {
	jobCtx, cancel := context.WithCancel(ctx)
	if !l.opts.Pool.Submit(jobCtx, job, l.post) {
		cancel()
		return false
	}
	l.inflight[job.ID] = cancel
	log.Printf("submit: job %s for %v", job.ID, job.Region)
	l.notify(messages.CaptureStarted{JobID: job.ID, Region: job.Region})
	return true
}

// submitPending retries the held selection after a job has reported back.
func (l *Loop) submitPending(ctx context.Context) {
	if l.pending == nil {
		return
	}
	job := *l.pending
	if l.submit(ctx, job) {
		l.pending = nil
		return
	}
	if len(l.inflight) == 0 {
		l.pending = nil
		log.Printf("submitPending: worker busy, dropping job %s", job.ID)
		l.notify(messages.CaptureFailed{JobID: job.ID, Reason: "Busy, please retry"})
	}
}

func (l *Loop) dropPending(why string) {
	if l.pending == nil {
		return
	}
	log.Printf("dropPending: job %s %s", l.pending.ID, why)
	l.notify(messages.CaptureFailed{JobID: l.pending.ID, Reason: why})
	l.pending = nil
}

// post is the worker callback. It hands the result back to the loop goroutine.
func (l *Loop) post(res worker.Result) {
	select {
	case l.results <- res:
	case <-l.done:
	}
}

func (l *Loop) handleResult(ctx context.Context, res worker.Result) {
	if cancel, ok := l.inflight[res.Job.ID]; ok {
		cancel()
		delete(l.inflight, res.Job.ID)
	}
	defer l.submitPending(ctx)

	if res.Err != nil {
		if errors.Is(res.Err, capture.ErrCancelled) {
			log.Printf("handleResult: job %s cancelled", res.Job.ID)
		} else {
			log.Printf("handleResult: job %s failed: %v", res.Job.ID, res.Err)
		}
		l.notify(messages.CaptureFailed{JobID: res.Job.ID, Reason: reason(res.Err)})
		return
	}

	art := res.Artifact
	log.Printf("handleResult: job %s produced %s", res.Job.ID, art.Path)
	l.notify(messages.GifReady{
		JobID:  res.Job.ID,
		Path:   art.Path,
		Width:  art.Width,
		Height: art.Height,
		Frames: art.FrameCount,
	})

	if l.opts.Copy != nil {
		if err := l.opts.Copy(art.Path); err != nil {
			log.Printf("handleResult: clipboard error: %v", err)
		}
	}
}

func (l *Loop) cancelAll() {
	for _, cancel := range l.inflight {
		cancel()
	}
}

func (l *Loop) notify(msg messages.Message) {
	if l.opts.Notifier == nil {
		return
	}
	if !l.opts.Notifier.Notify(msg) {
		log.Printf("notify: dropped %s message", msg.Type())
	}
}

func reason(err error) string {
	if errors.Is(err, capture.ErrCancelled) {
		return "cancelled"
	}
	var ce *capture.CaptureError
	if errors.As(err, &ce) && ce.Frame > 0 {
		return fmt.Sprintf("frame %d: %s failed", ce.Frame, ce.Op)
	}
	return err.Error()
}
