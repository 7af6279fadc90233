// Package protocol defines the JSON envelopes exchanged with game clients.
//
// Every frame is a single JSON object carrying a "type" discriminator.
// Inbound frames decode into one of the Envelope implementations below;
// outbound frames are built from the message structs in outbound.go.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Kind is the value of an envelope's "type" field.
type Kind string

const (
	KindLogin        Kind = "login"
	KindCreateGame   Kind = "create_game"
	KindPlayerJoin   Kind = "player_join"
	KindStartGame    Kind = "start_game"
	KindPlayerHit    Kind = "player_hit"
	KindLeaveGame    Kind = "leave_game"
	KindWebRTCOffer  Kind = "webrtc-offer"
	KindWebRTCAnswer Kind = "webrtc-answer"
	KindWebRTCICE    Kind = "webrtc-ice"
)

var (
	// ErrMalformed is returned for frames that are not a JSON object.
	ErrMalformed = errors.New("malformed envelope")
	// ErrUnknownType is returned for a missing or unrecognised "type".
	ErrUnknownType = errors.New("unknown envelope type")
)

// Envelope is an inbound client message.
type Envelope interface {
	Kind() Kind
}

// Login requests an identity bound to a display name.
type Login struct {
	Username string `json:"username"`
}

// CreateGame requests a new session with the sender as host.
type CreateGame struct{}

// PlayerJoin requests membership of an existing session.
type PlayerJoin struct {
	Username string `json:"username"`
	GameID   string `json:"gameId"`
	Role     string `json:"role"`
}

// StartGame requests the lobby to active transition.
type StartGame struct {
	GameID string `json:"gameId"`
}

// PlayerHit reports a classified shot.
type PlayerHit struct {
	GameID   string `json:"gameId"`
	Color    string `json:"color"`
	Username string `json:"username"`
	Weapon   string `json:"weapon"`
}

// LeaveGame requests removal from a session.
type LeaveGame struct {
	GameID string `json:"gameId"`
	Role   string `json:"role"`
}

// Signal is a peer-connection handshake message. Only the routing fields
// are decoded; Raw holds the frame exactly as received.
type Signal struct {
	Type   Kind
	FromID string
	ToID   string
	Raw    []byte
}

func (Login) Kind() Kind      { return KindLogin }
func (CreateGame) Kind() Kind { return KindCreateGame }
func (PlayerJoin) Kind() Kind { return KindPlayerJoin }
func (StartGame) Kind() Kind  { return KindStartGame }
func (PlayerHit) Kind() Kind  { return KindPlayerHit }
func (LeaveGame) Kind() Kind  { return KindLeaveGame }
func (s Signal) Kind() Kind   { return s.Type }

// Decode parses a single inbound frame.
//
// Postcondition: Returns a concrete Envelope, or an error wrapping
// ErrMalformed or ErrUnknownType.
func Decode(data []byte) (Envelope, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrMalformed
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, ErrMalformed
	}

	kind := Kind(root.Get("type").String())
	switch kind {
	case KindLogin:
		return decodeInto[Login](data)
	case KindCreateGame:
		return CreateGame{}, nil
	case KindPlayerJoin:
		return decodeInto[PlayerJoin](data)
	case KindStartGame:
		return decodeInto[StartGame](data)
	case KindPlayerHit:
		return decodeInto[PlayerHit](data)
	case KindLeaveGame:
		return decodeInto[LeaveGame](data)
	case KindWebRTCOffer, KindWebRTCAnswer, KindWebRTCICE:
		raw := make([]byte, len(data))
		copy(raw, data)
		return Signal{
			Type:   kind,
			FromID: root.Get("fromId").String(),
			ToID:   root.Get("toId").String(),
			Raw:    raw,
		}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrUnknownType)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, kind)
	}
}

func decodeInto[T Envelope](data []byte) (Envelope, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}
