package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewParticipant_UnknownRole(t *testing.T) {
	_, err := NewParticipant("p1", "alice", Role("referee"), nil)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("spectator")
	require.NoError(t, err)
	assert.Equal(t, RoleSpectator, r)

	_, err = ParseRole("")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestParticipant_SetHostOnSpectatorConflicts(t *testing.T) {
	p, err := NewParticipant("s1", "sam", RoleSpectator, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, p.SetHost(true), ErrRoleConflict)
	assert.False(t, p.IsHost(), "host flag must be unchanged after a conflict")
	assert.Equal(t, RoleSpectator, p.Role())

	assert.NoError(t, p.SetHost(false))
}

func TestParticipant_SetSpectatorOnHostConflicts(t *testing.T) {
	p, err := NewParticipant("p1", "alice", RolePlayer, nil)
	require.NoError(t, err)
	require.NoError(t, p.SetHost(true))
	p.Team = TeamBlue

	assert.ErrorIs(t, p.SetSpectator(true), ErrRoleConflict)
	assert.True(t, p.IsPlayer())
	assert.True(t, p.IsHost())
	assert.Equal(t, TeamBlue, p.Team)
}

func TestParticipant_SetSpectatorClearsTeam(t *testing.T) {
	p, err := NewParticipant("p1", "alice", RolePlayer, nil)
	require.NoError(t, err)
	p.Team = TeamRed

	require.NoError(t, p.SetSpectator(true))
	assert.False(t, p.IsPlayer())
	assert.Equal(t, TeamUnassigned, p.Team)

	require.NoError(t, p.SetSpectator(false))
	assert.True(t, p.IsPlayer())
}

func TestParticipant_DisplayName(t *testing.T) {
	p, _ := NewParticipant("0123456789", "", RolePlayer, nil)
	assert.Equal(t, "Player-012345", p.DisplayName())

	p.Username = "alice"
	assert.Equal(t, "alice", p.DisplayName())
}

func TestParticipant_Entry(t *testing.T) {
	p, _ := NewParticipant("p1", "alice", RolePlayer, nil)
	require.NoError(t, p.SetHost(true))
	p.Team = TeamBlue
	p.Score = 7

	e := p.Entry()
	assert.Equal(t, "p1", e.ID)
	assert.Equal(t, "alice", e.Username)
	assert.Equal(t, 7, e.Score)
	assert.Equal(t, "blue", e.Team)
	assert.False(t, e.Spectator)
	assert.True(t, e.Host)
}

func TestTeam_Opposite(t *testing.T) {
	assert.Equal(t, TeamBlue, TeamRed.Opposite())
	assert.Equal(t, TeamRed, TeamBlue.Opposite())
	assert.Equal(t, TeamUnassigned, TeamUnassigned.Opposite())
}

func TestPropertyApplyNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p, _ := NewParticipant("p1", "alice", RolePlayer, nil)
		for _, d := range rapid.SliceOf(rapid.IntRange(-20, 20)).Draw(t, "deltas") {
			if got := p.Apply(d); got < 0 || p.Score != got {
				t.Fatalf("score %d after delta %d", p.Score, d)
			}
		}
	})
}
