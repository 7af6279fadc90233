package protocol

import "encoding/json"

// Outbound message types.
const (
	TypeLoginSuccess     = "login_success"
	TypeGameCreated      = "game_created"
	TypeJoinConfirmed    = "join_confirmed"
	TypePlayerListUpdate = "player_list_update"
	TypeScoreUpdate      = "score_update"
	TypeTimerTick        = "timer_tick"
	TypeGameStarted      = "game_started"
	TypeGameOver         = "game_over"
	TypeJoinError        = "join_error"
	TypeError            = "error"
)

// RosterEntry is the external view of one participant. An empty Team is
// encoded as null.
type RosterEntry struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Score     int    `json:"score"`
	Team      string `json:"team"`
	Spectator bool   `json:"spectator"`
	Host      bool   `json:"host"`
}

func (e RosterEntry) MarshalJSON() ([]byte, error) {
	type entry RosterEntry
	var team *string
	if e.Team != "" {
		team = &e.Team
	}
	return json.Marshal(struct {
		entry
		Team *string `json:"team"`
	}{entry: entry(e), Team: team})
}

type LoginSuccess struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type GameCreated struct {
	Type    string `json:"type"`
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

type JoinConfirmed struct {
	Type    string `json:"type"`
	GameID  string `json:"gameId"`
	Team    string `json:"team,omitempty"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

// PlayerListUpdate is the full roster snapshot.
type PlayerListUpdate struct {
	Type          string        `json:"type"`
	GameID        string        `json:"gameId"`
	Players       []RosterEntry `json:"players"`
	RedTeamScore  int           `json:"redTeamScore"`
	BlueTeamScore int           `json:"blueTeamScore"`
}

// ScoreUpdate is a roster snapshot tagged with the participant whose hit caused it.
type ScoreUpdate struct {
	Type            string        `json:"type"`
	GameID          string        `json:"gameId"`
	Players         []RosterEntry `json:"players"`
	RedTeamScore    int           `json:"redTeamScore"`
	BlueTeamScore   int           `json:"blueTeamScore"`
	UpdatedPlayerID string        `json:"updatedPlayerId"`
}

type TimerTick struct {
	Type            string `json:"type"`
	GameID          string `json:"gameId"`
	TimeLeftSeconds int    `json:"timeLeftSeconds"`
}

type GameStarted struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
}

type GameOver struct {
	Type          string        `json:"type"`
	GameID        string        `json:"gameId"`
	Winner        string        `json:"winner"`
	Players       []RosterEntry `json:"players"`
	RedTeamScore  int           `json:"redTeamScore"`
	BlueTeamScore int           `json:"blueTeamScore"`
}

type JoinError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error reports a rejected request. Protocol optionally names the request class.
type Error struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Protocol string `json:"protocol,omitempty"`
}

// NewError builds an error message.
func NewError(message, protocol string) Error {
	return Error{Type: TypeError, Message: message, Protocol: protocol}
}

// NewJoinError builds a join_error message.
func NewJoinError(message string) JoinError {
	return JoinError{Type: TypeJoinError, Message: message}
}

// Encode marshals an outbound message to a single frame.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}
