package selection

import (
	"time"

	"screen-gif-capture/src/screenshot"
)

// Kind classifies a pointer event.
type Kind int

const (
	Other Kind = iota
	Press
	Move
	Release
)

func (k Kind) String() string {
	switch k {
	case Press:
		return "press"
	case Move:
		return "move"
	case Release:
		return "release"
	default:
		return "other"
	}
}

// Button identifies a mouse button. Only ButtonLeft drives a selection.
type Button int

const (
	ButtonNone Button = iota
	ButtonLeft
	ButtonRight
	ButtonMiddle
)

// Event is one pointer event as delivered by the global input source.
type Event struct {
	Kind   Kind
	Button Button
	Point  screenshot.Point
	When   time.Time
}

// OutcomeKind tells the caller what a handled event produced.
type OutcomeKind int

const (
	None OutcomeKind = iota
	// Started: a drag was anchored.
	Started
	// Update: a throttled in-progress region.
	Update
	// Completed: the final region of a drag, never throttled.
	Completed
)

// Outcome is the result of feeding one event to a Session.
type Outcome struct {
	Kind   OutcomeKind
	Anchor screenshot.Point
	Region screenshot.Region
}

// Session is the drag state machine. It is not safe for concurrent use:
// a single input goroutine owns it for the process lifetime.
type Session struct {
	dragging bool
	anchor   screenshot.Point
	throttle *Throttle
}

// NewSession creates an idle session throttling moves at interval.
func NewSession(interval time.Duration) *Session {
	return &Session{throttle: NewThrottle(interval)}
}

// Dragging reports whether a gesture is in progress.
func (s *Session) Dragging() bool { return s.dragging }

// Handle applies one event and returns what, if anything, to deliver downstream.
func (s *Session) Handle(ev Event) Outcome {
	switch ev.Kind {
	case Press:
		if ev.Button != ButtonLeft {
			return Outcome{}
		}
		// A press while dragging means the previous release was lost; re-anchor.
		s.dragging = true
		s.anchor = ev.Point
		s.throttle.Reset()
		return Outcome{Kind: Started, Anchor: ev.Point}

	case Move:
		if !s.dragging {
			return Outcome{}
		}
		if !s.throttle.Allow(ev.When) {
			return Outcome{}
		}
		return Outcome{Kind: Update, Anchor: s.anchor, Region: screenshot.RegionFrom(s.anchor, ev.Point)}

	case Release:
		if ev.Button != ButtonLeft || !s.dragging {
			return Outcome{}
		}
		anchor := s.anchor
		s.Reset()
		return Outcome{Kind: Completed, Anchor: anchor, Region: screenshot.RegionFrom(anchor, ev.Point)}
	}
	return Outcome{}
}

// Reset returns the session to idle without emitting anything.
func (s *Session) Reset() {
	s.dragging = false
	s.anchor = screenshot.Point{}
}
