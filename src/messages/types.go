package messages

import (
	"screen-gif-capture/src/screenshot"
)

// Message is the base interface for everything sent to the UI layer
type Message interface {
	Type() string
}

// Event names as seen by the overlay
const (
	TypeResizeSquare   = "resize_square"
	TypeHandshake      = "message-from-core"
	TypeCaptureStarted = "capture_started"
	TypeCaptureFailed  = "capture_failed"
	TypeGifReady       = "gif_ready"
)

// ResizeSquare - a selection rectangle update for the overlay indicator.
// Final marks the release-triggered region of a gesture.
type ResizeSquare struct {
	X      int
	Y      int
	Width  int
	Height int
	Final  bool
}

func (m ResizeSquare) Type() string { return TypeResizeSquare }

// Payload returns the (x, y, width, height) tuple the overlay expects.
func (m ResizeSquare) Payload() [4]int { return [4]int{m.X, m.Y, m.Width, m.Height} }

// NewResizeSquare converts a region into an overlay update.
func NewResizeSquare(r screenshot.Region, final bool) ResizeSquare {
	return ResizeSquare{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height, Final: final}
}

// Handshake - one-time liveness message sent when the core starts
type Handshake struct {
	Text string
}

func (m Handshake) Type() string { return TypeHandshake }

// CaptureStarted - a burst capture job was accepted
type CaptureStarted struct {
	JobID  string
	Region screenshot.Region
}

func (m CaptureStarted) Type() string { return TypeCaptureStarted }

// CaptureFailed - a capture or assembly did not produce a GIF
type CaptureFailed struct {
	JobID  string // empty when the job was never created
	Reason string
}

func (m CaptureFailed) Type() string { return TypeCaptureFailed }

// GifReady - the animated image was written
type GifReady struct {
	JobID  string
	Path   string
	Width  int
	Height int
	Frames int
}

func (m GifReady) Type() string { return TypeGifReady }
