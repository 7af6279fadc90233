package gameserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lasertag/internal/game/scoring"
	"github.com/cory-johannsen/lasertag/internal/game/session"
	"github.com/cory-johannsen/lasertag/internal/observability"
	"github.com/cory-johannsen/lasertag/internal/protocol"
)

// Error protocol tags carried on error replies.
const (
	ProtoCreateGame = "create_game_error"
	ProtoStartGame  = "start_game_error"
	ProtoPlayerHit  = "player_hit_error"
	ProtoLeaveGame  = "leave_game_error"
)

const (
	msgGameCreated = "Game created successfully!"
	msgInvalidGame = "Invalid Game ID. Please check the code."
)

// Client is the server-side state of one connection.
//
// A Client is owned by its connection's read loop; Handle and Disconnect
// must not be called concurrently for the same Client.
type Client struct {
	// ID is the connection identity assigned at connect time.
	ID string
	// Username is the name recorded by the last login.
	Username string
	// Outbox receives every frame addressed to this connection.
	Outbox *session.Outbox

	session *session.Session
}

// current returns the live session the client is in, clearing a stale one.
func (c *Client) current() *session.Session {
	if c.session == nil {
		return nil
	}
	select {
	case <-c.session.Done():
		c.session = nil
	default:
	}
	return c.session
}

// Dispatcher decodes inbound frames and invokes the matching registry,
// session, or relay operation on behalf of a Client.
type Dispatcher struct {
	registry   *session.Registry
	conns      *Directory
	relay      *Relay
	logger     *zap.Logger
	bufferSize int
}

// NewDispatcher creates a Dispatcher.
//
// Precondition: registry, conns, and logger must be non-nil.
// Postcondition: Client outboxes are created with bufferSize slots.
func NewDispatcher(registry *session.Registry, conns *Directory, bufferSize int, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		conns:      conns,
		relay:      NewRelay(registry, conns, logger),
		logger:     logger,
		bufferSize: bufferSize,
	}
}

// Connect assigns a fresh identity and registers its Outbox.
//
// Postcondition: Returns a Client reachable through the Directory.
func (d *Dispatcher) Connect() (*Client, error) {
	id := uuid.NewString()
	out := session.NewOutbox(id, d.bufferSize)
	if err := d.conns.Register(out); err != nil {
		return nil, err
	}
	d.logger.Debug("client connected", observability.ConnID(id))
	return &Client{ID: id, Outbox: out}, nil
}

// Disconnect removes the client from its session and from the Directory.
//
// Postcondition: The client's Outbox is closed; remaining members receive
// an updated roster.
func (d *Dispatcher) Disconnect(ctx context.Context, c *Client) {
	if s := c.current(); s != nil {
		if err := s.Leave(ctx, c.ID); err != nil && !errors.Is(err, session.ErrSessionEnded) {
			d.logger.Warn("leaving game on disconnect",
				observability.ConnID(c.ID),
				observability.GameID(s.Code()),
				zap.Error(err),
			)
		}
		c.session = nil
	}
	d.conns.Unregister(c.ID)
	d.logger.Debug("client disconnected", observability.ConnID(c.ID))
}

// Handle processes one inbound frame. Protocol errors are logged and the
// frame is dropped; validation errors are reported to the client.
func (d *Dispatcher) Handle(ctx context.Context, c *Client, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		d.logger.Warn("dropping inbound frame", observability.ConnID(c.ID), zap.Error(err))
		return
	}

	switch msg := env.(type) {
	case protocol.Login:
		d.login(c, msg)
	case protocol.CreateGame:
		d.createGame(ctx, c)
	case protocol.PlayerJoin:
		d.join(ctx, c, msg)
	case protocol.StartGame:
		d.start(ctx, c, msg)
	case protocol.PlayerHit:
		d.hit(ctx, c, msg)
	case protocol.LeaveGame:
		d.leave(ctx, c, msg)
	case protocol.Signal:
		d.relay.Forward(c.ID, msg)
	}
}

func (d *Dispatcher) login(c *Client, msg protocol.Login) {
	c.Username = msg.Username
	if c.Username == "" {
		c.Username = "anonymous"
	}
	d.logger.Info("player logged in", observability.ConnID(c.ID), zap.String("username", c.Username))
	d.reply(c, protocol.LoginSuccess{Type: protocol.TypeLoginSuccess, ID: c.ID})
}

func (d *Dispatcher) createGame(ctx context.Context, c *Client) {
	if s := c.current(); s != nil {
		d.reply(c, protocol.NewError(fmt.Sprintf("Already in game %s", s.Code()), ProtoCreateGame))
		return
	}
	s, err := d.registry.Create()
	if err != nil {
		d.logger.Error("creating game", observability.ConnID(c.ID), zap.Error(err))
		d.reply(c, protocol.NewError("Could not create game", ProtoCreateGame))
		return
	}
	d.reply(c, protocol.GameCreated{Type: protocol.TypeGameCreated, GameID: s.Code(), Message: msgGameCreated})

	host, err := session.NewParticipant(c.ID, c.Username, session.RolePlayer, c.Outbox)
	if err == nil {
		err = host.SetHost(true)
	}
	if err == nil {
		_, err = s.Join(ctx, host)
	}
	if err != nil {
		d.logger.Error("joining created game", observability.ConnID(c.ID), observability.GameID(s.Code()), zap.Error(err))
		if aerr := s.Abandon(context.WithoutCancel(ctx)); aerr != nil {
			d.logger.Warn("abandoning created game", observability.GameID(s.Code()), zap.Error(aerr))
		}
		d.reply(c, protocol.NewError(err.Error(), ProtoCreateGame))
		return
	}
	c.session = s
}

func (d *Dispatcher) join(ctx context.Context, c *Client, msg protocol.PlayerJoin) {
	if msg.GameID == "" {
		d.reply(c, protocol.NewJoinError("Game ID is required to join a game."))
		return
	}
	s, err := d.registry.Lookup(msg.GameID)
	if err != nil {
		d.reply(c, protocol.NewJoinError(msgInvalidGame))
		return
	}
	if cur := c.current(); cur != nil {
		d.reply(c, protocol.NewJoinError(fmt.Sprintf("Already in game %s", cur.Code())))
		return
	}

	role := session.RolePlayer
	if msg.Role != "" {
		if role, err = session.ParseRole(msg.Role); err != nil {
			d.reply(c, protocol.NewJoinError(err.Error()))
			return
		}
	}
	name := msg.Username
	if name == "" {
		name = c.Username
	}
	p, err := session.NewParticipant(c.ID, name, role, c.Outbox)
	if err != nil {
		d.reply(c, protocol.NewJoinError(err.Error()))
		return
	}

	team, err := s.Join(ctx, p)
	switch {
	case errors.Is(err, session.ErrSessionEnded):
		d.reply(c, protocol.NewJoinError(fmt.Sprintf("Game %s has ended", s.Code())))
		return
	case err != nil:
		d.reply(c, protocol.NewJoinError(err.Error()))
		return
	}
	c.session = s
	d.logger.Info("joined game",
		observability.ConnID(c.ID),
		observability.GameID(s.Code()),
		zap.String("role", string(role)),
		zap.String("team", string(team)),
	)
}

func (d *Dispatcher) start(ctx context.Context, c *Client, msg protocol.StartGame) {
	s, err := d.registry.Lookup(msg.GameID)
	if err != nil {
		d.reply(c, protocol.NewError(fmt.Sprintf("Game %s not found", msg.GameID), ProtoStartGame))
		return
	}
	if err := s.Start(ctx, c.ID); err != nil && !errors.Is(err, session.ErrSessionEnded) {
		d.reply(c, protocol.NewError(err.Error(), ProtoStartGame))
	}
}

func (d *Dispatcher) hit(ctx context.Context, c *Client, msg protocol.PlayerHit) {
	s, err := d.registry.Lookup(msg.GameID)
	if err != nil {
		d.logger.Warn("hit for unknown game", observability.ConnID(c.ID), observability.GameID(msg.GameID))
		d.reply(c, protocol.NewError(fmt.Sprintf("Game %s not found", msg.GameID), ProtoPlayerHit))
		return
	}
	color, err := scoring.ParseColor(msg.Color)
	if err != nil {
		d.reply(c, protocol.NewError(err.Error(), ProtoPlayerHit))
		return
	}
	weapon, err := s.Scoring().ParseWeapon(msg.Weapon)
	if err != nil {
		d.reply(c, protocol.NewError(err.Error(), ProtoPlayerHit))
		return
	}
	if err := s.Hit(ctx, c.ID, color, weapon); err != nil && !errors.Is(err, session.ErrSessionEnded) {
		d.reply(c, protocol.NewError(err.Error(), ProtoPlayerHit))
	}
}

func (d *Dispatcher) leave(ctx context.Context, c *Client, msg protocol.LeaveGame) {
	s, err := d.registry.Lookup(msg.GameID)
	if err != nil {
		d.reply(c, protocol.NewError(fmt.Sprintf("Game %s not found", msg.GameID), ProtoLeaveGame))
		return
	}
	err = s.Leave(ctx, c.ID)
	if err != nil && !errors.Is(err, session.ErrSessionEnded) {
		d.reply(c, protocol.NewError(err.Error(), ProtoLeaveGame))
		return
	}
	if c.session == s {
		c.session = nil
	}
}

// reply queues msg on the client's own Outbox.
func (d *Dispatcher) reply(c *Client, msg any) {
	data, err := protocol.Encode(msg)
	if err != nil {
		d.logger.Error("encoding reply", observability.ConnID(c.ID), zap.Error(err))
		return
	}
	if err := c.Outbox.Push(data); err != nil {
		d.logger.Debug("dropping reply", observability.ConnID(c.ID), zap.Error(err))
	}
}
