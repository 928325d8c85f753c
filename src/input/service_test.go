package input

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"screen-gif-capture/src/cursor"
	"screen-gif-capture/src/hotkey"
	"screen-gif-capture/src/screenshot"
	"screen-gif-capture/src/selection"
)

// fakeSource hands out one channel per Start; tests feed it directly.
type fakeSource struct {
	mu       sync.Mutex
	starts   int
	failures int
	ch       chan Event
	started  chan chan Event
}

func newFakeSource() *fakeSource {
	return &fakeSource{started: make(chan chan Event, 16)}
}

func (f *fakeSource) Start() (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("hook registration failed")
	}
	f.ch = make(chan Event, 64)
	f.started <- f.ch
	return f.ch, nil
}

func (f *fakeSource) Stop() {}

func (f *fakeSource) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type recordingPublisher struct {
	mu      sync.Mutex
	updates []screenshot.Region
	finals  []screenshot.Region
}

func (p *recordingPublisher) Publish(r screenshot.Region) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, r)
	return true
}

func (p *recordingPublisher) PublishFinal(r screenshot.Region) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finals = append(p.finals, r)
	return true
}

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ptr(kind selection.Kind, x, y int, at time.Duration) Event {
	btn := selection.ButtonNone
	if kind != selection.Move {
		btn = selection.ButtonLeft
	}
	return Event{Pointer: selection.Event{Kind: kind, Button: btn, Point: screenshot.Point{X: x, Y: y}, When: base.Add(at)}}
}

func waitGesture(t *testing.T, s *Service) Gesture {
	t.Helper()
	select {
	case g := <-s.Gestures():
		return g
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for gesture")
	}
	return Gesture{}
}

func TestServiceDragScenario(t *testing.T) {
	src := newFakeSource()
	pub := &recordingPublisher{}
	s := NewService(Options{Source: src, Publisher: pub, Throttle: 16 * time.Millisecond})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	ch := <-src.started
	ch <- ptr(selection.Press, 100, 100, 0)
	for i := 1; i <= 100; i++ {
		ch <- ptr(selection.Move, 100+2*i, 100+3*i, time.Duration(i)*time.Millisecond)
	}
	ch <- ptr(selection.Release, 300, 400, 101*time.Millisecond)

	if g := waitGesture(t, s); g.Kind != GestureStarted || g.Anchor != (screenshot.Point{X: 100, Y: 100}) {
		t.Fatalf("Expected start gesture at anchor, got %+v", g)
	}
	g := waitGesture(t, s)
	want := screenshot.Region{X: 100, Y: 100, Width: 200, Height: 300}
	if g.Kind != GestureCompleted || g.Region != want {
		t.Fatalf("Expected completed gesture %+v, got %+v", want, g)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.finals) != 1 || pub.finals[0] != want {
		t.Fatalf("Expected one final region %+v, got %v", want, pub.finals)
	}
	// 100ms of moves at a 16ms interval allows at most 7 updates.
	if n := len(pub.updates); n == 0 || n > 7 {
		t.Fatalf("Expected 1..7 throttled updates, got %d", n)
	}
}

func TestServiceReleaseWithoutPress(t *testing.T) {
	src := newFakeSource()
	pub := &recordingPublisher{}
	s := NewService(Options{Source: src, Publisher: pub})
	_ = s.Start(context.Background())

	ch := <-src.started
	ch <- ptr(selection.Release, 10, 10, 0)
	ch <- ptr(selection.Move, 20, 20, time.Millisecond)
	s.Stop()

	select {
	case g := <-s.Gestures():
		t.Fatalf("Expected no gesture, got %+v", g)
	default:
	}
	if len(pub.finals) != 0 || len(pub.updates) != 0 {
		t.Fatal("Expected nothing published")
	}
}

func TestServiceUsesCursorLocatorOnRelease(t *testing.T) {
	src := newFakeSource()
	loc := cursor.Func(func() (screenshot.Point, error) { return screenshot.Point{X: 40, Y: 50}, nil })
	s := NewService(Options{Source: src, Locator: loc})
	_ = s.Start(context.Background())
	defer s.Stop()

	ch := <-src.started
	ch <- ptr(selection.Press, 0, 0, 0)
	ch <- ptr(selection.Release, 999, 999, time.Millisecond)

	waitGesture(t, s)
	g := waitGesture(t, s)
	// Both corners come from the locator, so the region collapses.
	if !g.Region.Degenerate() {
		t.Fatalf("Expected locator-derived degenerate region, got %+v", g.Region)
	}
}

func TestServiceArmComboGatesPress(t *testing.T) {
	combo, err := hotkey.Parse("Alt")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	src := newFakeSource()
	s := NewService(Options{Source: src, Arm: combo})
	_ = s.Start(context.Background())
	defer s.Stop()

	ch := <-src.started
	ch <- ptr(selection.Press, 0, 0, 0)
	ch <- ptr(selection.Release, 10, 10, time.Millisecond)
	ch <- Event{Key: KeyDown, Rawcode: 164}
	ch <- ptr(selection.Press, 5, 5, 2*time.Millisecond)
	ch <- Event{Key: KeyUp, Rawcode: 164}
	ch <- ptr(selection.Release, 25, 35, 3*time.Millisecond)

	if g := waitGesture(t, s); g.Kind != GestureStarted || g.Anchor != (screenshot.Point{X: 5, Y: 5}) {
		t.Fatalf("Expected only the armed press to start a gesture, got %+v", g)
	}
	g := waitGesture(t, s)
	if g.Region != (screenshot.Region{X: 5, Y: 5, Width: 20, Height: 30}) {
		t.Fatalf("Unexpected region %+v", g.Region)
	}
}

func TestServiceRestartsAfterHookFailure(t *testing.T) {
	src := newFakeSource()
	src.failures = 2
	s := NewService(Options{Source: src, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})
	_ = s.Start(context.Background())
	defer s.Stop()

	select {
	case ch := <-src.started:
		close(ch) // hook dies after starting
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hook restart")
	}
	select {
	case <-src.started:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected hook to restart after channel closed")
	}
	if n := src.Starts(); n < 4 {
		t.Fatalf("Expected at least 4 start attempts, got %d", n)
	}
	if s.Err() != nil {
		t.Fatalf("Expected no terminal error, got %v", s.Err())
	}
}

func TestServiceGivesUpAfterMaxRestarts(t *testing.T) {
	src := newFakeSource()
	src.failures = 100
	s := NewService(Options{Source: src, MaxRestarts: 2, Backoff: time.Millisecond})
	_ = s.Start(context.Background())

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected service to terminate")
	}
	if !errors.Is(s.Err(), ErrHookFailed) {
		t.Fatalf("Expected ErrHookFailed, got %v", s.Err())
	}
	if n := src.Starts(); n != 3 {
		t.Fatalf("Expected 3 start attempts, got %d", n)
	}
	s.Stop()
}
