package session

import (
	"github.com/DoyleJ11/partyroom-backend/internal/engine"
	"github.com/DoyleJ11/partyroom-backend/internal/types"
)

type Msg interface{ isSessionMsg() }

type FromClient struct {
	Cmd engine.Command
}

func (FromClient) isSessionMsg() {}

// Join adds a participant. Reply receives nil once the player is in the room,
// or the engine error explaining why not.
type Join struct {
	ConnID     string
	PlayerName string
	Outbox     chan types.ServerMessage
	Reply      chan error
}

func (Join) isSessionMsg() {}

type Leave struct{ ConnID string }

func (Leave) isSessionMsg() {}

// Tick is delivered by the countdown timer. Gen identifies which arm of the
// timer produced it.
type Tick struct{ Gen uint64 }

func (Tick) isSessionMsg() {}

type Shutdown struct {
	Reason string
}

func (Shutdown) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type View struct {
	Room        engine.Snapshot
	Leaderboard []engine.Standing
	NumClients  int
	TimerArmed  bool
}
