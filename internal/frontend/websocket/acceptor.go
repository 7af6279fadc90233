package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lasertag/internal/config"
)

// SessionHandler processes a connected WebSocket session.
// Implementations run the message loop for a single client.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn *Conn) error
}

// Acceptor serves HTTP, upgrades requests on the configured path, and
// dispatches each connection to a SessionHandler.
type Acceptor struct {
	server    config.ServerConfig
	transport config.TransportConfig
	handler   SessionHandler
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	http     *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewAcceptor creates a WebSocket acceptor.
//
// Precondition: server must have a valid port and path; handler and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe or Serve.
func NewAcceptor(server config.ServerConfig, transport config.TransportConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Acceptor{
		server:    server,
		transport: transport,
		handler:   handler,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	a.http = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return a.ctx },
	}
	return a
}

// Handler returns the HTTP handler that upgrades requests on the WebSocket path.
func (a *Acceptor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(a.server.WSPath, a.upgrade)
	return mux
}

// ListenAndServe listens on the configured address and serves until Stop is called.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	listener, err := net.Listen("tcp", a.server.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.server.Addr(), err)
	}
	return a.Serve(listener)
}

// Serve accepts connections on listener until Stop is called.
func (a *Acceptor) Serve(listener net.Listener) error {
	start := time.Now()

	a.mu.Lock()
	a.listener = listener
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", a.server.WSPath),
		zap.Duration("startup", time.Since(start)),
	)

	if err := a.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// upgrade accepts one WebSocket connection and runs its session.
func (a *Acceptor) upgrade(w http.ResponseWriter, r *http.Request) {
	a.wg.Add(1)
	defer a.wg.Done()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: a.server.AllowedOrigins,
	})
	if err != nil {
		a.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	start := time.Now()
	a.logger.Info("client connected", zap.String("remote_addr", r.RemoteAddr))

	conn := NewConn(ws, r.RemoteAddr, a.transport.ReadTimeout, a.transport.WriteTimeout)
	defer conn.Close("")

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()

	if err := a.handler.HandleSession(ctx, conn); err != nil {
		a.logger.Debug("session ended",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
	} else {
		a.logger.Info("session ended cleanly",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// Stop stops accepting connections, cancels every active session, and
// waits for their handlers to return.
//
// Postcondition: All sessions have ended and the listener is closed.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	wasRunning := a.running
	a.running = false
	a.mu.Unlock()

	a.cancel()
	if wasRunning {
		ctx, cancel := context.WithTimeout(context.Background(), a.server.ShutdownTimeout)
		defer cancel()
		if err := a.http.Shutdown(ctx); err != nil {
			a.logger.Warn("http shutdown", zap.Error(err))
		}
	}
	a.wg.Wait()

	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
