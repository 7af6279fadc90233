package session

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/lasertag/internal/game/scoring"
	"github.com/cory-johannsen/lasertag/internal/protocol"
)

// Team is a player's side.
type Team string

const (
	TeamUnassigned Team = ""
	TeamRed        Team = "red"
	TeamBlue       Team = "blue"
)

// Opposite returns the other side. TeamUnassigned has no opposite.
func (t Team) Opposite() Team {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	default:
		return TeamUnassigned
	}
}

// Role distinguishes scoring players from watching spectators.
type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

var (
	// ErrRoleConflict is returned when a participant would be both host and spectator.
	ErrRoleConflict = errors.New("a player cannot be both a host and a spectator at the same time")
	// ErrUnknownRole is returned for a role outside {player, spectator}.
	ErrUnknownRole = errors.New("unknown role")
)

// ParseRole validates a wire role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RolePlayer, RoleSpectator:
		return r, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownRole, s)
	}
}

// Participant is one connected member of a session.
//
// A Participant is owned by the session goroutine once joined; callers
// must not mutate it after passing it to Session.Join.
type Participant struct {
	// ID is the connection identity.
	ID string
	// Username is the submitted display name.
	Username string
	// Team is meaningful only for players.
	Team Team
	// Score is never negative.
	Score int
	// Outbox receives frames addressed to this participant.
	Outbox *Outbox

	role Role
	host bool
}

// NewParticipant creates a participant with the given role.
//
// Precondition: id must be non-empty.
// Postcondition: Returns a participant with score 0 and no team, or ErrUnknownRole.
func NewParticipant(id, username string, role Role, out *Outbox) (*Participant, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	return &Participant{ID: id, Username: username, Outbox: out, role: role}, nil
}

// Role returns the participant's role.
func (p *Participant) Role() Role { return p.role }

// IsPlayer reports whether the participant scores.
func (p *Participant) IsPlayer() bool { return p.role == RolePlayer }

// IsHost reports whether the participant created the session.
func (p *Participant) IsHost() bool { return p.host }

// SetHost sets or clears the host flag.
//
// Postcondition: Returns ErrRoleConflict and leaves the participant unchanged
// if host is true and the participant is a spectator.
func (p *Participant) SetHost(host bool) error {
	if host && p.role == RoleSpectator {
		return ErrRoleConflict
	}
	p.host = host
	return nil
}

// SetSpectator switches the participant between spectator and player.
//
// Postcondition: Returns ErrRoleConflict and leaves the participant unchanged
// if spectator is true and the participant is the host. Becoming a spectator
// clears the team.
func (p *Participant) SetSpectator(spectator bool) error {
	if !spectator {
		p.role = RolePlayer
		return nil
	}
	if p.host {
		return ErrRoleConflict
	}
	p.role = RoleSpectator
	p.Team = TeamUnassigned
	return nil
}

// Apply adds delta to the score with a floor of zero and returns the new score.
func (p *Participant) Apply(delta int) int {
	p.Score = scoring.Clamp(p.Score, delta)
	return p.Score
}

// DisplayName returns the username, or "Player-" plus the first six
// characters of the ID when no username was given.
func (p *Participant) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	id := p.ID
	if len(id) > 6 {
		id = id[:6]
	}
	return "Player-" + id
}

// Entry returns the external roster view of the participant.
func (p *Participant) Entry() protocol.RosterEntry {
	return protocol.RosterEntry{
		ID:        p.ID,
		Username:  p.DisplayName(),
		Score:     p.Score,
		Team:      string(p.Team),
		Spectator: p.role == RoleSpectator,
		Host:      p.host,
	}
}
