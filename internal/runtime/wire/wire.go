package wire

import "sync"

// Wire is a bounded-or-unbounded FIFO channel with a single terminal
// sentinel, write-safe from many producers and read by a single consumer
// (spec §4.A). The zero value is not usable; construct with New.
type Wire struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// New constructs a Wire. bufferSize <= 0 yields an unbounded-in-practice
// channel sized generously enough that producers rarely block; pass a
// small positive size to get real back-pressure (spec §5's "Back-pressure"
// note: if the consumer can't keep up and the Wire is bounded, producers
// block, which is the intended behaviour when the client has disconnected).
func New(bufferSize int) *Wire {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Wire{ch: make(chan Event, bufferSize)}
}

// Write sends an event, blocking if the channel is full. Writes after
// Close are silently dropped — graceful degradation for racy nested
// closures (spec §4.A) — rather than panicking on a send to a closed
// channel.
func (w *Wire) Write(e Event) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}
	w.ch <- e
}

// WriteNowait sends an event without blocking; it drops the event if the
// channel is full or closed. Used by paths that must never suspend on
// back-pressure (spec §4.A names both write and write_nowait).
func (w *Wire) WriteNowait(e Event) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}
	select {
	case w.ch <- e:
	default:
	}
}

// Close posts the terminal sentinel and marks the Wire closed. Only the
// top-level executor should call Close — nested close attempts are no-ops
// (spec §5 "Cancellation": "Nested close attempts are no-ops").
func (w *Wire) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	w.ch <- sentinel
}

// Read returns a channel of events that terminates (is closed) once the
// sentinel is consumed. The sentinel itself is re-posted onto the
// underlying channel so a second call to Read also observes termination,
// per spec §4.A ("the sentinel is re-posted so any additional reader also
// observes termination").
func (w *Wire) Read() <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for e := range w.ch {
			if e.IsSentinel() {
				// Re-post for any other reader, then stop.
				w.mu.Lock()
				select {
				case w.ch <- e:
				default:
				}
				w.mu.Unlock()
				return
			}
			out <- e
		}
	}()
	return out
}
