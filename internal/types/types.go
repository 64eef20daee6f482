// Package types defines the websocket wire contract.
//
// Every frame in either direction is a JSON object {"type": ..., "data": ...}.
// Inbound frames are decoded into one concrete struct per message type and
// validated here, so nothing past the transport sees a half-formed payload.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DoyleJ11/partyroom-backend/internal/engine"
)

var ErrUnknownType = errors.New("unknown message type")
var ErrInvalidPayload = errors.New("invalid payload")

type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Role string

const (
	RolePresenter   Role = "presenter"
	RoleParticipant Role = "participant"
)

// ParseRole accepts the canonical role names and the names older clients send.
// An empty role means presenter.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "presenter", "host":
		return RolePresenter, true
	case "participant", "web-player", "player":
		return RoleParticipant, true
	default:
		return "", false
	}
}

// Inbound is one decoded client message.
type Inbound interface{ inboundType() string }

type Identify struct {
	Role Role
}

type JoinRoom struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type ChooseCharacter struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
	Character  string `json:"character"`
	Previous   string `json:"previous,omitempty"`
}

type ReleaseCharacter struct {
	RoomCode  string `json:"roomCode"`
	Character string `json:"character"`
}

type LockCharacter struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type StartCountdown struct {
	RoomCode string `json:"roomCode"`
}

type PlayerRolledDice struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
	RollValue  int    `json:"rollValue"`
}

type SetTiePolicy struct {
	RoomCode string           `json:"roomCode"`
	Policy   engine.TiePolicy `json:"policy"`
}

type EndGameStats struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
	Character  string `json:"character"`
	Position   int    `json:"position"`
}

func (Identify) inboundType() string         { return MsgIdentify }
func (JoinRoom) inboundType() string         { return MsgJoinRoom }
func (ChooseCharacter) inboundType() string  { return MsgChooseCharacter }
func (ReleaseCharacter) inboundType() string { return MsgReleaseCharacter }
func (LockCharacter) inboundType() string    { return MsgLockCharacter }
func (StartCountdown) inboundType() string   { return MsgStartCountdown }
func (PlayerRolledDice) inboundType() string { return MsgPlayerRolledDice }
func (SetTiePolicy) inboundType() string     { return MsgSetTiePolicy }
func (EndGameStats) inboundType() string     { return MsgEndGameStats }

// TypeName returns the wire name of a decoded message.
func TypeName(m Inbound) string { return m.inboundType() }

// Inbound message names.
const (
	MsgIdentify         = "identify"
	MsgJoinRoom         = "joinRoom"
	MsgChooseCharacter  = "chooseCharacter"
	MsgReleaseCharacter = "releaseCharacter"
	MsgLockCharacter    = "lockCharacter"
	MsgStartCountdown   = "startCountdown"
	MsgHostStartGame    = "hostStartGame"
	MsgPlayerRolledDice = "playerRolledDice"
	MsgSetTiePolicy     = "setTiePolicy"
	MsgEndGameStats     = "endGameStats"
)

// RoomScoped is implemented by every inbound message that names a room.
type RoomScoped interface {
	Inbound
	Room() string
}

func (m JoinRoom) Room() string         { return m.RoomCode }
func (m ChooseCharacter) Room() string  { return m.RoomCode }
func (m ReleaseCharacter) Room() string { return m.RoomCode }
func (m LockCharacter) Room() string    { return m.RoomCode }
func (m StartCountdown) Room() string   { return m.RoomCode }
func (m PlayerRolledDice) Room() string { return m.RoomCode }
func (m SetTiePolicy) Room() string     { return m.RoomCode }
func (m EndGameStats) Room() string     { return m.RoomCode }

func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch env.Type {
	case MsgIdentify:
		return decodeIdentify(env.Data)

	case MsgJoinRoom:
		var m JoinRoom
		if err := unmarshalData(env.Data, &m); err != nil {
			return nil, err
		}
		m.RoomCode = engine.NormalizeCode(m.RoomCode)
		if m.RoomCode == "" || strings.TrimSpace(m.PlayerName) == "" {
			return nil, fmt.Errorf("%w: joinRoom needs roomCode and playerName", ErrInvalidPayload)
		}
		return m, nil

	case MsgChooseCharacter:
		var m ChooseCharacter
		if err := unmarshalData(env.Data, &m); err != nil {
			return nil, err
		}
		m.RoomCode = engine.NormalizeCode(m.RoomCode)
		if m.RoomCode == "" || m.Character == "" {
			return nil, fmt.Errorf("%w: chooseCharacter needs roomCode and character", ErrInvalidPayload)
		}
		return m, nil

	case MsgReleaseCharacter:
		var m ReleaseCharacter
		if err := unmarshalData(env.Data, &m); err != nil {
			return nil, err
		}
		m.RoomCode = engine.NormalizeCode(m.RoomCode)
		if m.RoomCode == "" || m.Character == "" {
			return nil, fmt.Errorf("%w: releaseCharacter needs roomCode and character", ErrInvalidPayload)
		}
		return m, nil

	case MsgLockCharacter:
		var m LockCharacter
		if err := unmarshalData(env.Data, &m); err != nil {
			return nil, err
		}
		m.RoomCode = engine.NormalizeCode(m.RoomCode)
		if m.RoomCode == "" {
			return nil, fmt.Errorf("%w: lockCharacter needs roomCode", ErrInvalidPayload)
		}
		return m, nil

	case MsgStartCountdown, MsgHostStartGame:
		m, err := decodeStartCountdown(env.Data)
		if err != nil {
			return nil, err
		}
		return m, nil

	case MsgPlayerRolledDice:
		var raw struct {
			RoomCode   string `json:"roomCode"`
			PlayerName string `json:"playerName"`
			RollValue  *int   `json:"rollValue"`
		}
		if err := unmarshalData(env.Data, &raw); err != nil {
			return nil, err
		}
		code := engine.NormalizeCode(raw.RoomCode)
		if code == "" || raw.RollValue == nil {
			return nil, fmt.Errorf("%w: playerRolledDice needs roomCode and rollValue", ErrInvalidPayload)
		}
		return PlayerRolledDice{RoomCode: code, PlayerName: raw.PlayerName, RollValue: *raw.RollValue}, nil

	case MsgSetTiePolicy:
		var m SetTiePolicy
		if err := unmarshalData(env.Data, &m); err != nil {
			return nil, err
		}
		m.RoomCode = engine.NormalizeCode(m.RoomCode)
		if m.RoomCode == "" || !m.Policy.Valid() {
			return nil, fmt.Errorf("%w: setTiePolicy needs roomCode and a known policy", ErrInvalidPayload)
		}
		return m, nil

	case MsgEndGameStats:
		var m EndGameStats
		if err := unmarshalData(env.Data, &m); err != nil {
			return nil, err
		}
		m.RoomCode = engine.NormalizeCode(m.RoomCode)
		if m.RoomCode == "" || m.PlayerName == "" || m.Position < 1 {
			return nil, fmt.Errorf("%w: endGameStats needs roomCode, playerName and position", ErrInvalidPayload)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Presenter clients send the room code either bare or wrapped in an object.
func decodeStartCountdown(data json.RawMessage) (StartCountdown, error) {
	var m StartCountdown
	if s, ok := asString(data); ok {
		m.RoomCode = s
	} else if err := unmarshalData(data, &m); err != nil {
		return m, err
	}
	m.RoomCode = engine.NormalizeCode(m.RoomCode)
	if m.RoomCode == "" {
		return m, fmt.Errorf("%w: startCountdown needs roomCode", ErrInvalidPayload)
	}
	return m, nil
}

func decodeIdentify(data json.RawMessage) (Identify, error) {
	// Some clients double-encode the handshake as a JSON string.
	if s, ok := asString(data); ok {
		data = json.RawMessage(s)
	}

	var raw struct {
		Role       string `json:"role"`
		ClientType string `json:"clientType"`
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return Identify{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	name := raw.Role
	if name == "" {
		name = raw.ClientType
	}
	role, ok := ParseRole(name)
	if !ok {
		return Identify{}, fmt.Errorf("%w: unknown role %q", ErrInvalidPayload, name)
	}
	return Identify{Role: role}, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func asString(data json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}
