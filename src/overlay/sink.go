package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"screen-gif-capture/src/messages"
)

// record is one JSON line as read by the overlay process.
type record struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// JSONSink writes bus messages as JSON lines to the UI layer's pipe.
type JSONSink struct {
	enc *json.Encoder
}

// NewJSONSink creates a sink writing to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

// Run drains msgs until the channel closes or ctx is done.
func (s *JSONSink) Run(ctx context.Context, msgs <-chan messages.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := s.Write(m); err != nil {
				log.Printf("overlay: failed to write %s: %v", m.Type(), err)
			}
		}
	}
}

// Write encodes a single message.
func (s *JSONSink) Write(m messages.Message) error {
	if err := s.enc.Encode(record{Event: m.Type(), Payload: payload(m)}); err != nil {
		return fmt.Errorf("encode %s: %w", m.Type(), err)
	}
	return nil
}

func payload(m messages.Message) any {
	switch v := m.(type) {
	case messages.ResizeSquare:
		return v.Payload()
	case messages.Handshake:
		return v.Text
	case messages.CaptureStarted:
		return map[string]any{"job": v.JobID, "region": []int{v.Region.X, v.Region.Y, v.Region.Width, v.Region.Height}}
	case messages.CaptureFailed:
		return map[string]any{"job": v.JobID, "reason": v.Reason}
	case messages.GifReady:
		return map[string]any{"job": v.JobID, "path": v.Path, "width": v.Width, "height": v.Height, "frames": v.Frames}
	default:
		return m
	}
}
