package scheduler

import "github.com/telcorain/cmlrain/errkind"

// StatusBus carries status events on one buffered channel; each event is
// received by a single reader of Events. It is the user-visible surface a realtime dashboard or a
// one-shot CLI invocation reads progress from.
type StatusBus struct {
	ch chan errkind.StatusEvent
}

// NewStatusBus creates a bus with a small buffer so a slow consumer does
// not block the scheduler mid-iteration.
func NewStatusBus() *StatusBus {
	return &StatusBus{ch: make(chan errkind.StatusEvent, 64)}
}

// Events returns the receive side of the bus.
func (b *StatusBus) Events() <-chan errkind.StatusEvent { return b.ch }

// Emit publishes an event, dropping it if the buffer is full rather than
// blocking the calculation.
func (b *StatusBus) Emit(e errkind.StatusEvent) {
	select {
	case b.ch <- e:
	default:
	}
}

// Close shuts down the bus; callers must stop emitting before calling it.
func (b *StatusBus) Close() { close(b.ch) }
