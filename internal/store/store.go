// Package store keeps an append-only journal of room lifecycle events.
// Rooms themselves live in memory; the journal is for operators, and it
// never holds standings or leaderboards.
package store

import (
	"context"
	"encoding/json"
	"time"
)

type Kind string

const (
	KindRoomCreated      Kind = "room_created"
	KindRoomClosed       Kind = "room_closed"
	KindPlayerJoined     Kind = "player_joined"
	KindPlayerLeft       Kind = "player_left"
	KindCountdownStarted Kind = "countdown_started"
	KindOrderFinalized   Kind = "order_finalized"
)

type Event struct {
	RoomCode string
	Kind     Kind
	Detail   map[string]any
	At       time.Time
}

// Recorder accepts journal events. Record must not block the caller.
type Recorder interface {
	Record(Event)
}

// Sink persists one event.
type Sink interface {
	Insert(ctx context.Context, e Event) error
}

type Nop struct{}

func (Nop) Record(Event) {}

func encodeDetail(detail map[string]any) string {
	if len(detail) == 0 {
		return "{}"
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return "{}"
	}
	return string(b)
}
