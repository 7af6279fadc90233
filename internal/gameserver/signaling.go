package gameserver

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/lasertag/internal/game/session"
	"github.com/cory-johannsen/lasertag/internal/observability"
	"github.com/cory-johannsen/lasertag/internal/protocol"
)

// SessionLocator finds the live session an identity belongs to.
type SessionLocator interface {
	SessionOf(id string) (*session.Session, bool)
}

// Relay forwards peer-connection signaling frames between members of the
// same live session. Frames are forwarded byte-for-byte; nothing beyond the
// routing fields is decoded. Rejected frames are logged and dropped, never
// reported to the sender.
type Relay struct {
	sessions SessionLocator
	conns    *Directory
	logger   *zap.Logger
}

// NewRelay creates a Relay.
//
// Precondition: sessions, conns, and logger must be non-nil.
func NewRelay(sessions SessionLocator, conns *Directory, logger *zap.Logger) *Relay {
	return &Relay{sessions: sessions, conns: conns, logger: logger}
}

// Forward relays sig on behalf of the connection identified by sender.
//
// Postcondition: Returns true if the frame was queued on the target's Outbox.
func (r *Relay) Forward(sender string, sig protocol.Signal) bool {
	log := r.logger.With(
		zap.String("signal", string(sig.Type)),
		zap.String("from_id", sig.FromID),
		zap.String("to_id", sig.ToID),
	)

	if sig.FromID != sender {
		log.Warn("signal dropped: sender identity mismatch", observability.ConnID(sender))
		return false
	}
	from, ok := r.sessions.SessionOf(sig.FromID)
	if !ok {
		log.Warn("signal dropped: sender not in a game")
		return false
	}
	to, ok := r.sessions.SessionOf(sig.ToID)
	if !ok || to != from {
		log.Warn("signal dropped: peers not in same game")
		return false
	}
	if err := r.conns.Send(sig.ToID, sig.Raw); err != nil {
		log.Warn("signal dropped: destination unavailable", zap.Error(err))
		return false
	}
	log.Debug("signal forwarded", observability.GameID(from.Code()))
	return true
}
