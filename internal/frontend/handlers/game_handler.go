// Package handlers bridges accepted WebSocket connections to the game server dispatcher.
package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lasertag/internal/frontend/websocket"
	"github.com/cory-johannsen/lasertag/internal/gameserver"
	"github.com/cory-johannsen/lasertag/internal/observability"
)

// disconnectTimeout bounds the roster update sent when a connection drops.
const disconnectTimeout = 2 * time.Second

// GameHandler runs one client connection: a read loop feeding the
// dispatcher and a writer draining the client's Outbox.
type GameHandler struct {
	dispatcher *gameserver.Dispatcher
	logger     *zap.Logger
}

// NewGameHandler creates a GameHandler.
//
// Precondition: dispatcher and logger must be non-nil.
func NewGameHandler(dispatcher *gameserver.Dispatcher, logger *zap.Logger) *GameHandler {
	return &GameHandler{dispatcher: dispatcher, logger: logger}
}

// HandleSession implements websocket.SessionHandler.
//
// Postcondition: Returns nil when the peer closes normally. On return the
// client has left its game and been removed from the directory.
func (h *GameHandler) HandleSession(ctx context.Context, conn *websocket.Conn) error {
	client, err := h.dispatcher.Connect()
	if err != nil {
		return fmt.Errorf("registering connection: %w", err)
	}
	logger := h.logger.With(observability.ConnID(client.ID), zap.String("remote_addr", conn.RemoteAddr()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.forwardEvents(ctx, cancel, conn, client, logger)
	}()

	err = h.readLoop(ctx, conn, client)

	cancel()
	dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	h.dispatcher.Disconnect(dctx, client)
	dcancel()
	wg.Wait()

	if websocket.IsNormalClose(err) {
		return nil
	}
	return err
}

// readLoop hands every inbound frame to the dispatcher until the connection fails.
func (h *GameHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *gameserver.Client) error {
	for {
		data, err := conn.ReadMessage(ctx)
		if err != nil {
			return fmt.Errorf("reading frame: %w", err)
		}
		h.dispatcher.Handle(ctx, client, data)
	}
}

// forwardEvents writes queued frames to the connection until the Outbox is
// closed or a write fails. A failed write cancels the session.
func (h *GameHandler) forwardEvents(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, client *gameserver.Client, logger *zap.Logger) {
	events := client.Outbox.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteMessage(ctx, data); err != nil {
				if ctx.Err() == nil {
					logger.Debug("writing frame", zap.Error(err))
				}
				cancel()
				return
			}
		}
	}
}
