// Package websocket accepts WebSocket connections over HTTP and hands each
// one to a SessionHandler.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MaxFrameSize is the largest inbound frame accepted before the peer is disconnected.
const MaxFrameSize = 64 << 10

// Conn wraps a WebSocket connection with per-frame timeouts.
// Reads must come from a single goroutine; writes are safe for concurrent use.
type Conn struct {
	ws     *websocket.Conn
	remote string

	readTimeout  time.Duration
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an accepted WebSocket connection.
//
// Precondition: ws must be open.
// Postcondition: Returns a Conn whose inbound frames are limited to MaxFrameSize.
func NewConn(ws *websocket.Conn, remote string, readTimeout, writeTimeout time.Duration) *Conn {
	ws.SetReadLimit(MaxFrameSize)
	return &Conn{
		ws:           ws,
		remote:       remote,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadMessage blocks until the next text or binary frame arrives.
//
// Postcondition: Returns the frame payload, or an error once the peer has
// gone away, the read timeout elapsed, or ctx was cancelled.
func (c *Conn) ReadMessage(ctx context.Context) ([]byte, error) {
	if c.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.readTimeout)
		defer cancel()
	}
	_, data, err := c.ws.Read(ctx)
	return data, err
}

// WriteMessage sends data as one text frame.
func (c *Conn) WriteMessage(ctx context.Context, data []byte) error {
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Close performs the closing handshake. Safe to call repeatedly.
func (c *Conn) Close(reason string) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close(websocket.StatusNormalClosure, reason)
	})
	return c.closeErr
}

// RemoteAddr returns the peer address reported by the HTTP request.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// IsNormalClose reports whether err is the peer closing the connection
// normally or going away.
func IsNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
