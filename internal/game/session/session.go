package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lasertag/internal/game/scoring"
	"github.com/cory-johannsen/lasertag/internal/protocol"
)

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	Code      string
	Phase     Phase
	Roster    []protocol.RosterEntry
	Totals    Totals
	Remaining time.Duration
	Winner    Winner
}

type request struct {
	fn    func(*State) ([]Outbound, error)
	reply chan error
}

// Session owns one State and serialises every mutation of it through a single
// goroutine. Client requests and countdown ticks are events in the same
// select loop, so a tick and a hit never interleave.
//
// All methods are safe for concurrent use.
type Session struct {
	code     string
	interval time.Duration
	scoring  scoring.Rules
	logger   *zap.Logger
	requests chan request
	done     chan struct{}
	onEnd    func(*Session)

	phase   atomic.Int32
	members atomic.Pointer[map[string]Role]
	final   atomic.Pointer[Snapshot]
}

// newSession creates a session and starts its goroutine. The goroutine exits
// when the game ends or ctx is cancelled; onEnd runs only for the former.
func newSession(ctx context.Context, code string, rules Rules, logger *zap.Logger, onEnd func(*Session)) *Session {
	s := &Session{
		code:     code,
		interval: rules.TickInterval,
		scoring:  rules.Scoring,
		logger:   logger.With(zap.String("game_id", code)),
		requests: make(chan request),
		done:     make(chan struct{}),
		onEnd:    onEnd,
	}
	st := NewState(code, rules)
	s.publish(st)
	go s.run(ctx, st)
	return s
}

func (s *Session) run(ctx context.Context, st *State) {
	defer close(s.done)

	var ticker *time.Ticker
	var tickC <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("session stopped", zap.Error(ctx.Err()))
			return
		case req := <-s.requests:
			msgs, err := req.fn(st)
			s.publish(st)
			s.deliver(st, msgs)
			req.reply <- err
			if st.Phase() == PhaseActive && ticker == nil {
				ticker = time.NewTicker(s.interval)
				tickC = ticker.C
				s.logger.Info("game started",
					zap.Int("players", len(st.players)),
					zap.Duration("duration", st.Remaining()),
				)
			}
		case <-tickC:
			msgs := st.Tick()
			s.publish(st)
			s.deliver(st, msgs)
		}

		if st.Phase() == PhaseEnded {
			snap := snapshotOf(st)
			s.final.Store(&snap)
			if st.Abandoned() {
				s.logger.Info("game abandoned")
			} else {
				s.logger.Info("game over",
					zap.String("winner", string(st.Winner())),
					zap.Int("red_total", st.Totals().Red),
					zap.Int("blue_total", st.Totals().Blue),
				)
			}
			if s.onEnd != nil {
				s.onEnd(s)
			}
			return
		}
	}
}

// publish mirrors the fields readable without entering the loop.
func (s *Session) publish(st *State) {
	s.phase.Store(int32(st.Phase()))
	members := make(map[string]Role, len(st.index))
	for id, p := range st.index {
		members[id] = p.Role()
	}
	s.members.Store(&members)
}

// deliver encodes each message once and pushes it to its recipients.
func (s *Session) deliver(st *State, msgs []Outbound) {
	for _, m := range msgs {
		data, err := protocol.Encode(m.Msg)
		if err != nil {
			s.logger.Error("encoding outbound message", zap.Error(err))
			continue
		}
		if m.To != "" {
			if p, ok := st.Participant(m.To); ok {
				s.push(p, data)
			}
			continue
		}
		for _, p := range st.Members() {
			s.push(p, data)
		}
	}
}

func (s *Session) push(p *Participant, data []byte) {
	if p.Outbox == nil {
		return
	}
	if err := p.Outbox.Push(data); err != nil {
		s.logger.Debug("dropping outbound message",
			zap.String("conn_id", p.ID),
			zap.Error(err),
		)
	}
}

// do runs fn on the session goroutine and waits for it to finish.
func (s *Session) do(ctx context.Context, fn func(*State) ([]Outbound, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return ErrSessionEnded
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Code returns the session code.
func (s *Session) Code() string { return s.code }

// Scoring returns the session's hit table.
func (s *Session) Scoring() scoring.Rules { return s.scoring }

// Phase returns the most recently published lifecycle phase.
func (s *Session) Phase() Phase { return Phase(s.phase.Load()) }

// Done is closed when the session goroutine exits.
func (s *Session) Done() <-chan struct{} { return s.done }

// Has reports whether id is a member as of the last processed event.
func (s *Session) Has(id string) bool {
	_, ok := (*s.members.Load())[id]
	return ok
}

// Join adds p to the roster and returns the team it was assigned.
//
// Precondition: p must not be shared with another session.
// Postcondition: join_confirmed is queued on p.Outbox before the roster broadcast.
func (s *Session) Join(ctx context.Context, p *Participant) (Team, error) {
	var team Team
	err := s.do(ctx, func(st *State) ([]Outbound, error) {
		msgs, err := st.Join(p)
		team = p.Team
		return msgs, err
	})
	return team, err
}

// Leave removes id from the roster.
func (s *Session) Leave(ctx context.Context, id string) error {
	return s.do(ctx, func(st *State) ([]Outbound, error) {
		return st.Leave(id)
	})
}

// Abandon ends the session if it is an empty lobby.
//
// Postcondition: Returns nil once the request was processed, whether or not
// the session ended. Returns nil for a session that has already ended.
func (s *Session) Abandon(ctx context.Context) error {
	err := s.do(ctx, func(st *State) ([]Outbound, error) {
		st.Abandon()
		return nil, nil
	})
	if errors.Is(err, ErrSessionEnded) {
		return nil
	}
	return err
}

// Start requests the lobby to active transition on behalf of requester.
func (s *Session) Start(ctx context.Context, requester string) error {
	return s.do(ctx, func(st *State) ([]Outbound, error) {
		return st.Start(requester)
	})
}

// Hit applies a shot by shooter.
func (s *Session) Hit(ctx context.Context, shooter string, color scoring.Color, weapon scoring.Weapon) error {
	return s.do(ctx, func(st *State) ([]Outbound, error) {
		return st.Hit(shooter, color, weapon)
	})
}

// Snapshot returns a copy of the current state. For an ended session it
// returns the final state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func(st *State) ([]Outbound, error) {
		snap = snapshotOf(st)
		return nil, nil
	})
	if errors.Is(err, ErrSessionEnded) {
		if final := s.final.Load(); final != nil {
			return *final, nil
		}
	}
	return snap, err
}

func snapshotOf(st *State) Snapshot {
	return Snapshot{
		Code:      st.Code(),
		Phase:     st.Phase(),
		Roster:    st.Roster(),
		Totals:    st.Totals(),
		Remaining: st.Remaining(),
		Winner:    st.Winner(),
	}
}
