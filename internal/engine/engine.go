package engine

import (
	"cmp"
	"errors"
	"slices"
	"strings"
)

var ErrUnauthorized = errors.New("not allowed for this connection")
var ErrPlayerNotFound = errors.New("player not found")
var ErrInvalidName = errors.New("invalid player name")
var ErrNameTaken = errors.New("player name already taken")
var ErrAlreadyJoined = errors.New("connection already joined")
var ErrCharacterTaken = errors.New("character already taken")
var ErrNoCharacter = errors.New("no character selected")
var ErrAlreadyLocked = errors.New("player already locked in")
var ErrInvalidPolicy = errors.New("invalid tie policy")
var ErrInvalidPosition = errors.New("invalid position")
var ErrUnsupportedCommand = errors.New("unsupported command")

const MaxNameLen = 24

type TiePolicy string

const (
	TieStable TiePolicy = "stable"
	TieReroll TiePolicy = "reroll"
)

func (p TiePolicy) Valid() bool {
	return p == TieStable || p == TieReroll
}

type Rules struct {
	CountdownSec       int
	FastForwardFloor   int
	TiePolicy          TiePolicy
	AutoStartCountdown bool
}

type Player struct {
	ConnID    string
	Name      string
	Character string
	Locked    bool
}

type Standing struct {
	PlayerName string `json:"playerName"`
	Character  string `json:"character"`
	Position   int    `json:"position"`
}

// Room is the authoritative state of one game session. It is not safe for
// concurrent use; the session coordinator owns it.
type Room struct {
	Code        string
	PresenterID string
	Players     []*Player
	Characters  map[string]string // character -> player name
	Rolls       map[string]int    // player name -> roll, current round only
	Countdown   *int              // nil unless a countdown is running
	Rules       Rules
	Standings   []Standing
}

type CommandType string

const (
	CmdJoin             CommandType = "Join"
	CmdLeave            CommandType = "Leave"
	CmdChooseCharacter  CommandType = "ChooseCharacter"
	CmdReleaseCharacter CommandType = "ReleaseCharacter"
	CmdLockCharacter    CommandType = "LockCharacter"
	CmdStartCountdown   CommandType = "StartCountdown"
	CmdTick             CommandType = "Tick"
	CmdRollDice         CommandType = "RollDice"
	CmdSetTiePolicy     CommandType = "SetTiePolicy"
	CmdEndGameStats     CommandType = "EndGameStats"
)

/*
	CmdJoin             -> EvtPlayerJoined (-> EvtCountdownStarted when auto start is on)
	CmdLeave            -> EvtPlayerLeft (-> EvtCharactersChanged) (-> EvtOrderFinalized | EvtTieDetected)
	CmdChooseCharacter  -> EvtCharactersChanged, or ErrCharacterTaken with no change
	CmdReleaseCharacter -> EvtCharactersChanged
	CmdLockCharacter    -> EvtPlayerLocked (-> EvtAllPlayersReady)
	CmdStartCountdown   -> EvtCountdownStarted, nothing when already running
	CmdTick             -> EvtCountdownTicked (-> EvtCountdownFinished)
	CmdRollDice         -> EvtDiceRolled (-> EvtOrderFinalized | EvtTieDetected)
	CmdEndGameStats     -> EvtLeaderboardUpdated
*/

type Command struct {
	Type       CommandType
	ConnID     string
	PlayerName string
	Character  string
	Previous   string
	RollValue  int
	Policy     TiePolicy
	Position   int
}

type EventType string

const (
	EvtPlayerJoined       EventType = "PlayerJoined"
	EvtPlayerLeft         EventType = "PlayerLeft"
	EvtCharactersChanged  EventType = "CharactersChanged"
	EvtPlayerLocked       EventType = "PlayerLocked"
	EvtAllPlayersReady    EventType = "AllPlayersReady"
	EvtCountdownStarted   EventType = "CountdownStarted"
	EvtCountdownTicked    EventType = "CountdownTicked"
	EvtCountdownFinished  EventType = "CountdownFinished"
	EvtDiceRolled         EventType = "DiceRolled"
	EvtOrderFinalized     EventType = "OrderFinalized"
	EvtTieDetected        EventType = "TieDetected"
	EvtTiePolicyChanged   EventType = "TiePolicyChanged"
	EvtLeaderboardUpdated EventType = "LeaderboardUpdated"
)

type Event struct {
	Type       EventType
	ConnID     string
	PlayerName string
	Value      int
	Order      []string
	Ties       [][]string
}

func Apply(r *Room, cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdJoin:
		return r.join(cmd)

	case CmdLeave:
		return r.leave(cmd.ConnID)

	case CmdChooseCharacter:
		p, err := r.actingPlayer(cmd)
		if err != nil {
			return nil, err
		}
		if p.Locked {
			return nil, ErrAlreadyLocked
		}
		if cmd.Character == "" {
			return nil, ErrNoCharacter
		}
		return r.choose(p, cmd.Character, cmd.Previous)

	case CmdReleaseCharacter:
		if !r.isMember(cmd.ConnID) {
			return nil, ErrUnauthorized
		}
		r.Release(cmd.Character)
		return []Event{{Type: EvtCharactersChanged}}, nil

	case CmdLockCharacter:
		p, err := r.actingPlayer(cmd)
		if err != nil {
			return nil, err
		}
		if p.Character == "" {
			return nil, ErrNoCharacter
		}
		if p.Locked {
			return nil, nil
		}
		p.Locked = true
		events := []Event{{Type: EvtPlayerLocked, PlayerName: p.Name}}
		if r.AllLocked() {
			events = append(events, Event{Type: EvtAllPlayersReady})
		}
		return events, nil

	case CmdStartCountdown:
		if cmd.ConnID != r.PresenterID {
			return nil, ErrUnauthorized
		}
		return r.StartCountdown(), nil

	case CmdTick:
		return r.Tick(), nil

	case CmdRollDice:
		p, err := r.actingPlayer(cmd)
		if err != nil {
			return nil, err
		}
		return r.SubmitRoll(p.Name, cmd.RollValue)

	case CmdSetTiePolicy:
		if cmd.ConnID != r.PresenterID {
			return nil, ErrUnauthorized
		}
		if !cmd.Policy.Valid() {
			return nil, ErrInvalidPolicy
		}
		r.Rules.TiePolicy = cmd.Policy
		return []Event{{Type: EvtTiePolicyChanged}}, nil

	case CmdEndGameStats:
		if cmd.ConnID != r.PresenterID {
			return nil, ErrUnauthorized
		}
		return r.recordStanding(cmd)

	default:
		return nil, ErrUnsupportedCommand
	}
}

func (r *Room) join(cmd Command) ([]Event, error) {
	name, ok := cleanName(cmd.PlayerName)
	if !ok {
		return nil, ErrInvalidName
	}
	if cmd.ConnID == r.PresenterID || r.PlayerByConn(cmd.ConnID) != nil {
		return nil, ErrAlreadyJoined
	}
	if r.nameTaken(name) {
		return nil, ErrNameTaken
	}

	r.Players = append(r.Players, &Player{ConnID: cmd.ConnID, Name: name})
	events := []Event{{Type: EvtPlayerJoined, ConnID: cmd.ConnID, PlayerName: name}}

	if r.Rules.AutoStartCountdown {
		events = append(events, r.StartCountdown()...)
	}
	return events, nil
}

func (r *Room) leave(connID string) ([]Event, error) {
	idx := slices.IndexFunc(r.Players, func(p *Player) bool { return p.ConnID == connID })
	if idx < 0 {
		return nil, ErrPlayerNotFound
	}
	p := r.Players[idx]
	r.Players = slices.Delete(r.Players, idx, idx+1)

	events := []Event{{Type: EvtPlayerLeft, ConnID: connID, PlayerName: p.Name}}
	if r.ReleaseAll(p.Name) > 0 {
		events = append(events, Event{Type: EvtCharactersChanged})
	}

	// A departure can be the thing that completes an open round.
	_, rolled := r.Rolls[p.Name]
	delete(r.Rolls, p.Name)
	if rolled || len(r.Rolls) > 0 {
		events = append(events, r.resolveIfComplete()...)
	}
	return events, nil
}

func (r *Room) recordStanding(cmd Command) ([]Event, error) {
	if cmd.Position < 1 {
		return nil, ErrInvalidPosition
	}
	name, ok := cleanName(cmd.PlayerName)
	if !ok {
		return nil, ErrInvalidName
	}
	r.Standings = slices.DeleteFunc(r.Standings, func(s Standing) bool {
		return s.PlayerName == name
	})
	r.Standings = append(r.Standings, Standing{
		PlayerName: name,
		Character:  cmd.Character,
		Position:   cmd.Position,
	})
	slices.SortStableFunc(r.Standings, func(a, b Standing) int { return cmp.Compare(a.Position, b.Position) })
	return []Event{{Type: EvtLeaderboardUpdated}}, nil
}

// actingPlayer resolves the player behind a connection and checks that any
// player name in the command refers to that same player. Names are compared
// the way join stores them, with surrounding space trimmed.
func (r *Room) actingPlayer(cmd Command) (*Player, error) {
	p := r.PlayerByConn(cmd.ConnID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if name := strings.TrimSpace(cmd.PlayerName); name != "" && name != p.Name {
		return nil, ErrUnauthorized
	}
	return p, nil
}

func (r *Room) isMember(connID string) bool {
	return connID == r.PresenterID || r.PlayerByConn(connID) != nil
}

func (r *Room) AllLocked() bool {
	if len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if !p.Locked {
			return false
		}
	}
	return true
}
