package input

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"screen-gif-capture/src/cursor"
	"screen-gif-capture/src/hotkey"
	"screen-gif-capture/src/screenshot"
	"screen-gif-capture/src/selection"
)

// ErrHookFailed is reported once the service gives up restarting the hook.
var ErrHookFailed = errors.New("input hook failed")

var errHookClosed = errors.New("hook event channel closed")

// HookError wraps a registration or listen failure of the global hook.
type HookError struct {
	Err error
}

func (e *HookError) Error() string { return "input hook: " + e.Err.Error() }
func (e *HookError) Unwrap() error { return e.Err }

// Publisher receives selection rectangles for the overlay. Both calls must
// return quickly; they run on the input goroutine.
type Publisher interface {
	Publish(r screenshot.Region) bool
	PublishFinal(r screenshot.Region) bool
}

// GestureKind distinguishes gesture notifications for the event loop.
type GestureKind int

const (
	GestureStarted GestureKind = iota
	GestureCompleted
)

// Gesture is sent to the event loop when a drag starts or completes.
type Gesture struct {
	Kind   GestureKind
	Anchor screenshot.Point
	Region screenshot.Region
	At     time.Time
}

// Options configures a Service.
type Options struct {
	Source    Source
	Locator   cursor.Locator
	Publisher Publisher
	// Throttle is the minimum spacing of in-progress updates.
	Throttle time.Duration
	// Arm, when non-empty, must be held for a press to start a drag.
	Arm hotkey.Combo
	// MaxRestarts bounds hook restarts; 0 restarts forever.
	MaxRestarts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

// Service owns the global input pipeline: source, drag session and throttle.
// All session state lives on the single goroutine started by Start.
type Service struct {
	opts     Options
	session  *selection.Session
	tracker  *hotkey.Tracker
	gestures chan Gesture

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewService creates a stopped service.
func NewService(opts Options) *Service {
	if opts.Source == nil {
		opts.Source = NewHookSource()
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 250 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Service{
		opts:     opts,
		session:  selection.NewSession(opts.Throttle),
		tracker:  hotkey.NewTracker(opts.Arm),
		gestures: make(chan Gesture, 8),
	}
}

// Gestures delivers drag starts and completions to the event loop.
func (s *Service) Gestures() <-chan Gesture { return s.gestures }

// Start launches the input goroutine. It returns immediately.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return errors.New("input service already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	return nil
}

// Stop cancels the input goroutine and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the input goroutine exits.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the terminal error, if the service gave up on the hook.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := s.opts.Backoff
	restarts := 0
	for {
		started := time.Now()
		err := s.listen(ctx)
		if ctx.Err() != nil {
			log.Printf("input: stopped")
			return
		}
		log.Printf("input: %v", err)

		if s.opts.MaxRestarts > 0 && restarts >= s.opts.MaxRestarts {
			s.mu.Lock()
			s.err = fmt.Errorf("%w after %d restarts: %v", ErrHookFailed, restarts, err)
			s.mu.Unlock()
			log.Printf("input: giving up: %v", s.err)
			return
		}
		// A hook that ran for a while before dying starts over with a short wait.
		if time.Since(started) > time.Minute {
			backoff = s.opts.Backoff
		}
		restarts++
		log.Printf("input: restarting hook in %v (attempt %d)", backoff, restarts)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, s.opts.MaxBackoff)
	}
}

func (s *Service) listen(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HookError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	events, err := s.opts.Source.Start()
	if err != nil {
		return &HookError{Err: err}
	}
	defer s.opts.Source.Stop()
	// Any half-finished gesture from a previous hook instance is stale.
	s.session.Reset()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return &HookError{Err: errHookClosed}
			}
			s.handle(ev)
		}
	}
}

func (s *Service) handle(ev Event) {
	switch ev.Key {
	case KeyDown:
		s.tracker.KeyDown(ev.Rawcode)
		return
	case KeyUp:
		s.tracker.KeyUp(ev.Rawcode)
		return
	}

	pe := ev.Pointer
	if pe.Button == selection.ButtonLeft {
		switch pe.Kind {
		case selection.Press:
			if !s.session.Dragging() && !s.tracker.Held() {
				return
			}
			pe.Point = cursor.Resolve(s.opts.Locator, pe.Point)
		case selection.Release:
			if !s.session.Dragging() {
				return
			}
			pe.Point = cursor.Resolve(s.opts.Locator, pe.Point)
		}
	}

	out := s.session.Handle(pe)
	switch out.Kind {
	case selection.Started:
		s.emit(Gesture{Kind: GestureStarted, Anchor: out.Anchor, At: pe.When})
	case selection.Update:
		if s.opts.Publisher != nil {
			s.opts.Publisher.Publish(out.Region)
		}
	case selection.Completed:
		if s.opts.Publisher != nil {
			s.opts.Publisher.PublishFinal(out.Region)
		}
		s.emit(Gesture{Kind: GestureCompleted, Anchor: out.Anchor, Region: out.Region, At: pe.When})
	}
}

func (s *Service) emit(g Gesture) {
	select {
	case s.gestures <- g:
	default:
		log.Printf("input: event loop busy, dropped gesture kind=%d region=%v", g.Kind, g.Region)
	}
}
