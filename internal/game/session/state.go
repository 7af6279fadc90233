package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/lasertag/internal/game/scoring"
	"github.com/cory-johannsen/lasertag/internal/protocol"
)

// Phase is the lifecycle state of a session.
type Phase int32

const (
	// PhaseLobby accepts joins; hits are ignored.
	PhaseLobby Phase = iota
	// PhaseActive has a running countdown and accepts hits.
	PhaseActive
	// PhaseEnded is terminal.
	PhaseEnded
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Winner is the result of an ended game.
type Winner string

const (
	WinnerRed  Winner = "red"
	WinnerBlue Winner = "blue"
	WinnerDraw Winner = "draw"
)

var (
	// ErrSessionEnded is returned for mutations of an ended session.
	ErrSessionEnded = errors.New("game has ended")
	// ErrAlreadyJoined is returned when an identity joins a session twice.
	ErrAlreadyJoined = errors.New("already joined this game")
	// ErrNotMember is returned when an identity is not in the roster.
	ErrNotMember = errors.New("not a member of this game")
	// ErrNotPlayer is returned when a spectator attempts a player action.
	ErrNotPlayer = errors.New("only players can do that")
)

// Totals holds the cached team scores.
type Totals struct {
	Red  int
	Blue int
}

// Outbound is a message produced by a state transition. An empty To
// addresses every roster member.
type Outbound struct {
	To  string
	Msg any
}

// Rules configures a session.
type Rules struct {
	// Duration is the countdown length.
	Duration time.Duration
	// TickInterval is the countdown step.
	TickInterval time.Duration
	// Scoring is the hit table.
	Scoring scoring.Rules
}

// State is the complete state of one session. Its methods are pure with
// respect to I/O: they mutate the state and return the messages to send.
// A State is not safe for concurrent use; Session serialises access to it.
type State struct {
	code       string
	rules      Rules
	phase      Phase
	remaining  time.Duration
	players    []*Participant
	spectators []*Participant
	index      map[string]*Participant
	nextSide   Team
	totals     Totals
	winner     Winner
	abandoned  bool
}

// NewState creates a lobby-phase state.
//
// Precondition: rules.TickInterval > 0 and rules.Duration >= rules.TickInterval.
func NewState(code string, rules Rules) *State {
	return &State{
		code:     code,
		rules:    rules,
		phase:    PhaseLobby,
		index:    make(map[string]*Participant),
		nextSide: TeamBlue,
	}
}

// Code returns the session code.
func (s *State) Code() string { return s.code }

// Phase returns the lifecycle phase.
func (s *State) Phase() Phase { return s.phase }

// Totals returns the cached team totals.
func (s *State) Totals() Totals { return s.totals }

// Remaining returns the countdown time left.
func (s *State) Remaining() time.Duration { return s.remaining }

// Winner returns the winner once ended, or "" before.
func (s *State) Winner() Winner { return s.winner }

// Participant returns the member with the given id.
func (s *State) Participant(id string) (*Participant, bool) {
	p, ok := s.index[id]
	return p, ok
}

// Members returns every member in roster order: players by join order, then spectators.
func (s *State) Members() []*Participant {
	out := make([]*Participant, 0, len(s.players)+len(s.spectators))
	out = append(out, s.players...)
	return append(out, s.spectators...)
}

// Roster returns the external view of every member.
func (s *State) Roster() []protocol.RosterEntry {
	members := s.Members()
	entries := make([]protocol.RosterEntry, len(members))
	for i, p := range members {
		entries[i] = p.Entry()
	}
	return entries
}

// TeamCounts returns the number of players on each side.
func (s *State) TeamCounts() (red, blue int) {
	for _, p := range s.players {
		switch p.Team {
		case TeamRed:
			red++
		case TeamBlue:
			blue++
		}
	}
	return red, blue
}

// Join adds a participant. Players are given the next side and the pointer flips.
//
// Postcondition: On success returns join_confirmed addressed to the joiner
// followed by a roster broadcast. Fails with ErrSessionEnded, ErrAlreadyJoined,
// or ErrRoleConflict without mutating the state.
func (s *State) Join(p *Participant) ([]Outbound, error) {
	if s.phase == PhaseEnded {
		return nil, ErrSessionEnded
	}
	if _, exists := s.index[p.ID]; exists {
		return nil, ErrAlreadyJoined
	}
	if p.IsHost() && !p.IsPlayer() {
		return nil, ErrRoleConflict
	}

	confirm := protocol.JoinConfirmed{
		Type:   protocol.TypeJoinConfirmed,
		GameID: s.code,
		Role:   string(p.Role()),
	}
	if p.IsPlayer() {
		p.Team = s.assignSide()
		s.players = append(s.players, p)
		confirm.Team = string(p.Team)
		if p.IsHost() {
			confirm.Message = fmt.Sprintf("Joined game %s successfully as the host!", s.code)
		} else {
			confirm.Message = fmt.Sprintf("Joined game %s successfully as player!", s.code)
		}
	} else {
		p.Team = TeamUnassigned
		s.spectators = append(s.spectators, p)
		confirm.Message = fmt.Sprintf("Joined game %s successfully as spectator", s.code)
	}
	s.index[p.ID] = p
	s.recompute()

	return []Outbound{
		{To: p.ID, Msg: confirm},
		{Msg: s.playerList()},
	}, nil
}

// Leave removes a member.
//
// Postcondition: Returns ErrNotMember if id is unknown. An ended session's
// roster is frozen: the member is not removed and nothing is broadcast.
// Removing the last member of a lobby abandons the session.
func (s *State) Leave(id string) ([]Outbound, error) {
	if s.phase == PhaseEnded {
		return nil, ErrSessionEnded
	}
	p, ok := s.index[id]
	if !ok {
		return nil, ErrNotMember
	}
	delete(s.index, id)
	if p.IsPlayer() {
		s.players = without(s.players, id)
	} else {
		s.spectators = without(s.spectators, id)
	}
	s.recompute()
	if s.Abandon() {
		return nil, nil
	}
	return []Outbound{{Msg: s.playerList()}}, nil
}

// Abandon ends an empty lobby without a winner.
//
// Postcondition: Returns true if the session moved to PhaseEnded. A session
// with members, or one that has already started, is left unchanged.
func (s *State) Abandon() bool {
	if s.phase != PhaseLobby || len(s.index) > 0 {
		return false
	}
	s.phase = PhaseEnded
	s.abandoned = true
	return true
}

// Abandoned reports whether the session ended through Abandon.
func (s *State) Abandoned() bool { return s.abandoned }

// Start performs the lobby to active transition.
//
// Postcondition: Only a player may start. Outside PhaseLobby the call is a
// no-op returning no messages. On transition every score and total is
// reset, the countdown is armed, and game_started is broadcast.
func (s *State) Start(requester string) ([]Outbound, error) {
	p, ok := s.index[requester]
	if !ok {
		return nil, ErrNotMember
	}
	if !p.IsPlayer() {
		return nil, ErrNotPlayer
	}
	if s.phase != PhaseLobby {
		return nil, nil
	}

	for _, pl := range s.players {
		pl.Score = 0
	}
	s.totals = Totals{}
	s.remaining = s.rules.Duration
	s.phase = PhaseActive

	return []Outbound{{Msg: protocol.GameStarted{Type: protocol.TypeGameStarted, GameID: s.code}}}, nil
}

// Hit applies a classified shot from shooter.
//
// Postcondition: A spectator or unknown shooter is rejected with ErrNotPlayer
// or ErrNotMember. Outside PhaseActive the call is a no-op. Otherwise the
// outcome's deltas are applied with clamping, totals are recomputed, and a
// roster snapshot followed by a score_update naming the shooter is broadcast.
func (s *State) Hit(shooter string, color scoring.Color, weapon scoring.Weapon) ([]Outbound, error) {
	p, ok := s.index[shooter]
	if !ok {
		return nil, ErrNotMember
	}
	if !p.IsPlayer() {
		return nil, ErrNotPlayer
	}
	if s.phase != PhaseActive {
		return nil, nil
	}

	out := s.rules.Scoring.Evaluate(scoring.Color(p.Team), color, weapon)
	p.Apply(out.ShooterDelta)
	if out.TeamDelta != 0 {
		for _, pl := range s.players {
			if pl.Team == p.Team {
				pl.Apply(out.TeamDelta)
			}
		}
	}
	s.recompute()

	roster := s.Roster()
	return []Outbound{
		{Msg: s.playerListWith(roster)},
		{Msg: protocol.ScoreUpdate{
			Type:            protocol.TypeScoreUpdate,
			GameID:          s.code,
			Players:         roster,
			RedTeamScore:    s.totals.Red,
			BlueTeamScore:   s.totals.Blue,
			UpdatedPlayerID: shooter,
		}},
	}, nil
}

// Tick advances the countdown by one interval.
//
// Postcondition: Outside PhaseActive the call is a no-op. Otherwise
// timer_tick is broadcast; when the countdown reaches zero the session ends
// in the same call and game_over follows.
func (s *State) Tick() []Outbound {
	if s.phase != PhaseActive {
		return nil
	}
	s.remaining -= s.rules.TickInterval
	if s.remaining < 0 {
		s.remaining = 0
	}

	msgs := []Outbound{{Msg: protocol.TimerTick{
		Type:            protocol.TypeTimerTick,
		GameID:          s.code,
		TimeLeftSeconds: secondsCeil(s.remaining),
	}}}
	if s.remaining == 0 {
		msgs = append(msgs, s.end()...)
	}
	return msgs
}

// end performs the active to ended transition.
func (s *State) end() []Outbound {
	s.recompute()
	s.phase = PhaseEnded
	switch {
	case s.totals.Red > s.totals.Blue:
		s.winner = WinnerRed
	case s.totals.Blue > s.totals.Red:
		s.winner = WinnerBlue
	default:
		s.winner = WinnerDraw
	}
	return []Outbound{{Msg: protocol.GameOver{
		Type:          protocol.TypeGameOver,
		GameID:        s.code,
		Winner:        string(s.winner),
		Players:       s.Roster(),
		RedTeamScore:  s.totals.Red,
		BlueTeamScore: s.totals.Blue,
	}}}
}

// assignSide returns the side for the next player and flips the pointer.
// With joins only this is plain alternation; after a leave has left the
// sides uneven, the short side is filled first.
func (s *State) assignSide() Team {
	side := s.nextSide
	red, blue := s.TeamCounts()
	switch {
	case red < blue:
		side = TeamRed
	case blue < red:
		side = TeamBlue
	}
	s.nextSide = side.Opposite()
	return side
}

// recompute derives the team totals from the roster.
func (s *State) recompute() {
	var t Totals
	for _, p := range s.players {
		switch p.Team {
		case TeamRed:
			t.Red += p.Score
		case TeamBlue:
			t.Blue += p.Score
		}
	}
	s.totals = t
}

func (s *State) playerList() protocol.PlayerListUpdate {
	return s.playerListWith(s.Roster())
}

func (s *State) playerListWith(roster []protocol.RosterEntry) protocol.PlayerListUpdate {
	return protocol.PlayerListUpdate{
		Type:          protocol.TypePlayerListUpdate,
		GameID:        s.code,
		Players:       roster,
		RedTeamScore:  s.totals.Red,
		BlueTeamScore: s.totals.Blue,
	}
}

func without(list []*Participant, id string) []*Participant {
	out := list[:0]
	for _, p := range list {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func secondsCeil(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
