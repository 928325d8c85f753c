package overlay

import (
	"sync"
	"sync/atomic"

	"screen-gif-capture/src/messages"
	"screen-gif-capture/src/screenshot"
)

// DefaultBufferSize is the number of undelivered messages the bus holds.
const DefaultBufferSize = 64

// Bus is the bounded channel between the input context and the UI context.
// Producers never block: Publish drops on a full buffer, PublishFinal evicts
// the oldest pending rectangle update so the final region always lands last.
type Bus struct {
	mu      sync.Mutex
	ch      chan messages.Message
	closed  bool
	dropped atomic.Uint64
}

// NewBus creates a bus; size<=0 uses DefaultBufferSize.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{ch: make(chan messages.Message, size)}
}

// Messages is drained by the UI context on its own schedule.
func (b *Bus) Messages() <-chan messages.Message { return b.ch }

// Dropped returns how many messages were discarded because the UI lagged.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Publish offers an in-progress selection rectangle. Returns false if dropped.
func (b *Bus) Publish(r screenshot.Region) bool {
	return b.Notify(messages.NewResizeSquare(r, false))
}

// PublishFinal delivers the release-triggered rectangle. On a full buffer the
// oldest rectangle update is evicted; status messages go only when nothing
// else is queued.
func (b *Bus) PublishFinal(r screenshot.Region) bool {
	msg := messages.NewResizeSquare(r, true)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- msg:
		return true
	default:
	}

	var queued []messages.Message
drain:
	for {
		select {
		case m := <-b.ch:
			queued = append(queued, m)
		default:
			break drain
		}
	}
	if len(queued) > 0 {
		victim := 0
		for i, m := range queued {
			if _, ok := m.(messages.ResizeSquare); ok {
				victim = i
				break
			}
		}
		queued = append(queued[:victim], queued[victim+1:]...)
		b.dropped.Add(1)
	}

	for _, m := range queued {
		select {
		case b.ch <- m:
		default:
			b.dropped.Add(1)
		}
	}
	select {
	case b.ch <- msg:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Notify sends any UI message without blocking. Returns false if dropped.
func (b *Bus) Notify(msg messages.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- msg:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Close stops accepting messages and closes the channel for the consumer.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
