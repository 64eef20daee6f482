package types

import "github.com/DoyleJ11/partyroom-backend/internal/engine"

// Outbound message names.
const (
	MsgRoomCreated              = "roomCreated"
	MsgWelcome                  = "welcome"
	MsgJoinedRoom               = "joinedRoom"
	MsgLoadGamePage             = "loadGamePage"
	MsgJoinFailed               = "joinFailed"
	MsgUpdateRoom               = "updateRoom"
	MsgUpdateCharacterSelection = "updateCharacterSelection"
	MsgCharacterTaken           = "characterTaken"
	MsgCountdownUpdate          = "countdownUpdate"
	MsgPromptDiceRoll           = "promptDiceRoll"
	MsgStartGame                = "startGame"
	MsgDiceRolled               = "diceRolled"
	MsgPlayerOrderFinalized     = "playerOrderFinalized"
	MsgTieDetected              = "tieDetected"
	MsgAllPlayersReady          = "allPlayersReady"
	MsgFinalLeaderboard         = "finalLeaderboard"
	MsgRoomClosed               = "roomClosed"
)

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type RoomCreatedData struct {
	RoomCode string `json:"roomCode"`
}

type JoinedRoomData struct {
	RoomCode   string          `json:"roomCode"`
	PlayerName string          `json:"playerName"`
	Room       engine.Snapshot `json:"room"`
}

type DiceRolledData struct {
	PlayerName string `json:"playerName"`
	RollValue  int    `json:"rollValue"`
}

func RoomCreated(code string) ServerMessage {
	return ServerMessage{Type: MsgRoomCreated, Data: RoomCreatedData{RoomCode: code}}
}

func Welcome() ServerMessage {
	return ServerMessage{Type: MsgWelcome, Data: "Hello! Enter a room code to join."}
}

func JoinedRoom(name string, snap engine.Snapshot) ServerMessage {
	return ServerMessage{Type: MsgJoinedRoom, Data: JoinedRoomData{RoomCode: snap.Code, PlayerName: name, Room: snap}}
}

func LoadGamePage(name string, snap engine.Snapshot) ServerMessage {
	return ServerMessage{Type: MsgLoadGamePage, Data: JoinedRoomData{RoomCode: snap.Code, PlayerName: name, Room: snap}}
}

func JoinFailed(reason string) ServerMessage {
	return ServerMessage{Type: MsgJoinFailed, Data: reason}
}

func UpdateRoom(snap engine.Snapshot) ServerMessage {
	return ServerMessage{Type: MsgUpdateRoom, Data: snap}
}

func UpdateCharacterSelection(assignments map[string]string) ServerMessage {
	return ServerMessage{Type: MsgUpdateCharacterSelection, Data: assignments}
}

func CharacterTaken(character string) ServerMessage {
	return ServerMessage{Type: MsgCharacterTaken, Data: character}
}

func CountdownUpdate(seconds int) ServerMessage {
	return ServerMessage{Type: MsgCountdownUpdate, Data: seconds}
}

func PromptDiceRoll() ServerMessage { return ServerMessage{Type: MsgPromptDiceRoll} }

func StartGame() ServerMessage { return ServerMessage{Type: MsgStartGame} }

func AllPlayersReady() ServerMessage { return ServerMessage{Type: MsgAllPlayersReady} }

func DiceRolled(name string, value int) ServerMessage {
	return ServerMessage{Type: MsgDiceRolled, Data: DiceRolledData{PlayerName: name, RollValue: value}}
}

func PlayerOrderFinalized(order []string) ServerMessage {
	return ServerMessage{Type: MsgPlayerOrderFinalized, Data: order}
}

func TieDetected(ties [][]string) ServerMessage {
	return ServerMessage{Type: MsgTieDetected, Data: ties}
}

func FinalLeaderboard(standings []engine.Standing) ServerMessage {
	return ServerMessage{Type: MsgFinalLeaderboard, Data: standings}
}

func RoomClosed(reason string) ServerMessage {
	return ServerMessage{Type: MsgRoomClosed, Data: reason}
}
