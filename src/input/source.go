package input

import (
	"errors"
	"log"
	"sync"
	"time"

	gohook "github.com/robotn/gohook"

	"screen-gif-capture/src/screenshot"
	"screen-gif-capture/src/selection"
)

// KeyAction marks an Event as a keyboard transition.
type KeyAction int

const (
	KeyNone KeyAction = iota
	KeyDown
	KeyUp
)

// Event is one item from the global input stream: either a pointer event
// or a key transition used for arm-combo tracking.
type Event struct {
	Pointer selection.Event
	Key     KeyAction
	Rawcode uint16
}

// Source is a global OS-level input stream.
type Source interface {
	// Start registers the hook. The returned channel closes if the hook dies.
	Start() (<-chan Event, error)
	// Stop unregisters the hook.
	Stop()
}

var errAlreadyStarted = errors.New("hook already started")

// HookSource delivers events from the process-wide gohook listener.
type HookSource struct {
	mu   sync.Mutex
	done chan struct{}
}

// NewHookSource returns a Source backed by gohook.
func NewHookSource() *HookSource { return &HookSource{} }

func (s *HookSource) Start() (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil, errAlreadyStarted
	}

	log.Printf("input: starting gohook event loop...")
	evChan := gohook.Start()
	if evChan == nil {
		return nil, errors.New("gohook.Start() returned nil channel")
	}

	done := make(chan struct{})
	s.done = done
	out := make(chan Event, 256)
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case ev, ok := <-evChan:
				if !ok {
					log.Printf("input: gohook event channel closed")
					return
				}
				if e, ok := convert(ev); ok {
					select {
					case out <- e:
					case <-done:
						return
					}
				}
			}
		}
	}()
	return out, nil
}

func (s *HookSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return
	}
	close(s.done)
	s.done = nil
	gohook.End()
}

// convert maps a gohook event. gohook's kind names follow libuiohook's
// ordering: MouseHold is the button press, MouseDown the release, and
// KeyHold the physical key press.
func convert(ev gohook.Event) (Event, bool) {
	when := ev.When
	if when.IsZero() {
		when = time.Now()
	}
	pt := screenshot.Point{X: int(ev.X), Y: int(ev.Y)}

	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyHold:
		return Event{Key: KeyDown, Rawcode: ev.Rawcode}, true
	case gohook.KeyUp:
		return Event{Key: KeyUp, Rawcode: ev.Rawcode}, true
	case gohook.MouseHold:
		return Event{Pointer: selection.Event{Kind: selection.Press, Button: button(ev.Button), Point: pt, When: when}}, true
	case gohook.MouseDown:
		return Event{Pointer: selection.Event{Kind: selection.Release, Button: button(ev.Button), Point: pt, When: when}}, true
	case gohook.MouseMove, gohook.MouseDrag:
		return Event{Pointer: selection.Event{Kind: selection.Move, Point: pt, When: when}}, true
	}
	return Event{}, false
}

// libuiohook button numbering
const (
	hookButtonLeft   = 1
	hookButtonRight  = 2
	hookButtonMiddle = 3
)

func button(b uint16) selection.Button {
	switch b {
	case hookButtonLeft:
		return selection.ButtonLeft
	case hookButtonRight:
		return selection.ButtonRight
	case hookButtonMiddle:
		return selection.ButtonMiddle
	}
	return selection.ButtonNone
}
