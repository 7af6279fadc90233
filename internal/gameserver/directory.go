// Package gameserver routes decoded client envelopes to game sessions and
// relays peer-connection signaling between members of the same session.
package gameserver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cory-johannsen/lasertag/internal/game/session"
)

var (
	// ErrDuplicateConnection is returned when an identity is registered twice.
	ErrDuplicateConnection = errors.New("connection already registered")
	// ErrUnknownConnection is returned when an identity has no open Outbox.
	ErrUnknownConnection = errors.New("connection not found")
)

// Directory maps connection identities to their Outboxes.
// All methods are safe for concurrent use.
type Directory struct {
	mu    sync.RWMutex
	conns map[string]*session.Outbox
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{conns: make(map[string]*session.Outbox)}
}

// Register adds out under its identity.
//
// Precondition: out must be non-nil.
// Postcondition: Returns ErrDuplicateConnection if the identity is already present.
func (d *Directory) Register(out *session.Outbox) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.conns[out.ID()]; ok {
		return fmt.Errorf("registering %s: %w", out.ID(), ErrDuplicateConnection)
	}
	d.conns[out.ID()] = out
	return nil
}

// Unregister removes id and closes its Outbox. Unknown ids are ignored.
func (d *Directory) Unregister(id string) {
	d.mu.Lock()
	out, ok := d.conns[id]
	delete(d.conns, id)
	d.mu.Unlock()
	if ok {
		out.Close()
	}
}

// Lookup returns the open Outbox registered under id.
func (d *Directory) Lookup(id string) (*session.Outbox, bool) {
	d.mu.RLock()
	out, ok := d.conns[id]
	d.mu.RUnlock()
	if !ok || out.IsClosed() {
		return nil, false
	}
	return out, true
}

// Send pushes data to the Outbox registered under id.
//
// Postcondition: Returns ErrUnknownConnection, or the Outbox's push error.
func (d *Directory) Send(id string, data []byte) error {
	out, ok := d.Lookup(id)
	if !ok {
		return fmt.Errorf("sending to %s: %w", id, ErrUnknownConnection)
	}
	return out.Push(data)
}

// Count returns the number of registered connections.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}
