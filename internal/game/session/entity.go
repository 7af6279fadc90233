// Package session implements game sessions: the roster of participants,
// team assignment, scoring, the countdown, and the registry of live sessions.
package session

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutboxClosed is returned when pushing to a closed Outbox.
	ErrOutboxClosed = errors.New("outbox closed")
	// ErrOutboxFull is returned when an Outbox's buffer has no room.
	ErrOutboxFull = errors.New("outbox buffer full")
)

// Outbox is the outbound side of one client connection: a bounded queue of
// encoded frames drained by the connection's writer goroutine.
//
// Push never blocks. A slow client loses frames instead of stalling the
// session that broadcasts to it.
type Outbox struct {
	id     string
	events chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for the given connection identity.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an open Outbox; bufferSize <= 0 selects 64.
func NewOutbox(id string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		id:     id,
		events: make(chan []byte, bufferSize),
	}
}

// ID returns the connection identity.
func (o *Outbox) ID() string {
	return o.id
}

// Push enqueues a frame.
//
// Postcondition: The frame is enqueued, or ErrOutboxClosed / ErrOutboxFull is returned.
func (o *Outbox) Push(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s: %w", o.id, ErrOutboxClosed)
	}
	select {
	case o.events <- data:
		return nil
	default:
		return fmt.Errorf("outbox %s: %w", o.id, ErrOutboxFull)
	}
}

// Events returns the read-only frame channel. It is closed by Close.
func (o *Outbox) Events() <-chan []byte {
	return o.events
}

// Close marks the Outbox as closed and closes the frame channel.
//
// Postcondition: Further Push calls return ErrOutboxClosed. Safe to call repeatedly.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.events)
	}
}

// IsClosed reports whether the Outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
