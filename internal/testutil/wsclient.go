// Package testutil provides test helpers for exercising the server over a
// real WebSocket connection.
package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// WSClient is a JSON WebSocket test client for integration testing.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials url and returns a test client closed at test cleanup.
//
// Precondition: url must be a ws:// URL with a listening server.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}
	t.Cleanup(func() {
		conn.CloseNow()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// Send writes frame as one text message.
func (c *WSClient) Send(frame string) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		c.t.Fatalf("sending %q: %v", frame, err)
	}
}

// Expect reads frames until one whose "type" equals typ arrives and returns
// it decoded. Frames of other types are discarded.
//
// Postcondition: Returns the matching frame, or fails on timeout.
func (c *WSClient) Expect(typ string, timeout time.Duration) map[string]any {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var seen []string
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.t.Fatalf("reading until %q: saw %v, error: %v", typ, seen, err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			c.t.Fatalf("decoding frame %q: %v", data, err)
		}
		got, _ := m["type"].(string)
		if got == typ {
			return m
		}
		seen = append(seen, got)
	}
}

// Close performs a normal closing handshake.
func (c *WSClient) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
