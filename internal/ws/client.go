package ws

import (
	"sync"

	"github.com/google/uuid"

	"github.com/DoyleJ11/partyroom-backend/internal/session"
	"github.com/DoyleJ11/partyroom-backend/internal/types"
)

// Client is one websocket connection. Only its handler goroutine touches it.
type Client struct {
	ID     string
	role   types.Role // empty until identified
	room   *session.Coordinator
	outbox chan types.ServerMessage
}

func newClient(outboxSize int) *Client {
	return &Client{
		ID:     uuid.NewString(),
		outbox: make(chan types.ServerMessage, outboxSize),
	}
}

// identify sets the role once. Later calls report false and change nothing.
func (c *Client) identify(role types.Role) bool {
	if c.role != "" {
		return false
	}
	c.role = role
	return true
}

func (c *Client) Role() types.Role { return c.role }

// send writes straight to the outbox. It is only valid before the client is
// in a room; after that the room's coordinator owns the outbox.
func (c *Client) send(msg types.ServerMessage) {
	if c.room != nil {
		return
	}
	select {
	case c.outbox <- msg:
	default:
	}
}

// Connections is a point-in-time count of live websockets.
type Connections struct {
	Total        int `json:"total"`
	Presenters   int `json:"presenters"`
	Participants int `json:"participants"`
	Unidentified int `json:"unidentified"`
}

// Tracker counts live connections by role. It is shared between the
// websocket handler and the health endpoint.
type Tracker struct {
	mu     sync.Mutex
	byRole map[types.Role]int
}

func NewTracker() *Tracker {
	return &Tracker{byRole: make(map[types.Role]int)}
}

func (t *Tracker) connected() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byRole[""]++
}

func (t *Tracker) identified(role types.Role) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byRole[""]--
	t.byRole[role]++
}

func (t *Tracker) disconnected(role types.Role) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byRole[role]--
}

func (t *Tracker) Snapshot() Connections {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := Connections{
		Presenters:   t.byRole[types.RolePresenter],
		Participants: t.byRole[types.RoleParticipant],
		Unidentified: t.byRole[""],
	}
	c.Total = c.Presenters + c.Participants + c.Unidentified
	return c
}
