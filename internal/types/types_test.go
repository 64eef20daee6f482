package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/partyroom-backend/internal/engine"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		want  Inbound
	}{
		{
			name:  "identify participant",
			frame: `{"type":"identify","data":{"role":"participant"}}`,
			want:  Identify{Role: RoleParticipant},
		},
		{
			name:  "identify legacy clientType",
			frame: `{"type":"identify","data":{"clientType":"web-player"}}`,
			want:  Identify{Role: RoleParticipant},
		},
		{
			name:  "identify double encoded",
			frame: `{"type":"identify","data":"{\"clientType\":\"host\"}"}`,
			want:  Identify{Role: RolePresenter},
		},
		{
			name:  "identify without data defaults to presenter",
			frame: `{"type":"identify"}`,
			want:  Identify{Role: RolePresenter},
		},
		{
			name:  "join normalizes code",
			frame: `{"type":"joinRoom","data":{"roomCode":" wxyz ","playerName":"Ana"}}`,
			want:  JoinRoom{RoomCode: "WXYZ", PlayerName: "Ana"},
		},
		{
			name:  "choose with previous",
			frame: `{"type":"chooseCharacter","data":{"roomCode":"WXYZ","playerName":"Ana","character":"Tony","previous":"Rami"}}`,
			want:  ChooseCharacter{RoomCode: "WXYZ", PlayerName: "Ana", Character: "Tony", Previous: "Rami"},
		},
		{
			name:  "host start game bare code",
			frame: `{"type":"hostStartGame","data":"wxyz"}`,
			want:  StartCountdown{RoomCode: "WXYZ"},
		},
		{
			name:  "start countdown object",
			frame: `{"type":"startCountdown","data":{"roomCode":"WXYZ"}}`,
			want:  StartCountdown{RoomCode: "WXYZ"},
		},
		{
			name:  "roll",
			frame: `{"type":"playerRolledDice","data":{"roomCode":"WXYZ","playerName":"Ana","rollValue":4}}`,
			want:  PlayerRolledDice{RoomCode: "WXYZ", PlayerName: "Ana", RollValue: 4},
		},
		{
			name:  "tie policy",
			frame: `{"type":"setTiePolicy","data":{"roomCode":"WXYZ","policy":"reroll"}}`,
			want:  SetTiePolicy{RoomCode: "WXYZ", Policy: engine.TieReroll},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.frame))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{name: "not json", frame: `hello`, wantErr: ErrInvalidPayload},
		{name: "unknown type", frame: `{"type":"teleport","data":{}}`, wantErr: ErrUnknownType},
		{name: "unknown role", frame: `{"type":"identify","data":{"role":"spectator"}}`, wantErr: ErrInvalidPayload},
		{name: "join missing name", frame: `{"type":"joinRoom","data":{"roomCode":"WXYZ"}}`, wantErr: ErrInvalidPayload},
		{name: "join missing data", frame: `{"type":"joinRoom"}`, wantErr: ErrInvalidPayload},
		{name: "roll missing value", frame: `{"type":"playerRolledDice","data":{"roomCode":"WXYZ","playerName":"Ana"}}`, wantErr: ErrInvalidPayload},
		{name: "roll not an integer", frame: `{"type":"playerRolledDice","data":{"roomCode":"WXYZ","rollValue":"six"}}`, wantErr: ErrInvalidPayload},
		{name: "choose without character", frame: `{"type":"chooseCharacter","data":{"roomCode":"WXYZ"}}`, wantErr: ErrInvalidPayload},
		{name: "bad tie policy", frame: `{"type":"setTiePolicy","data":{"roomCode":"WXYZ","policy":"coinflip"}}`, wantErr: ErrInvalidPayload},
		{name: "stats without position", frame: `{"type":"endGameStats","data":{"roomCode":"WXYZ","playerName":"Ana"}}`, wantErr: ErrInvalidPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.frame))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestServerMessage_Encoding(t *testing.T) {
	b, err := json.Marshal(DiceRolled("Ana", 4))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"diceRolled","data":{"playerName":"Ana","rollValue":4}}`, string(b))

	b, err = json.Marshal(PromptDiceRoll())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"promptDiceRoll"}`, string(b))
}
