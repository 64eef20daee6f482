package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/partyroom-backend/internal/engine"
	"github.com/DoyleJ11/partyroom-backend/internal/hub"
	"github.com/DoyleJ11/partyroom-backend/internal/session"
	"github.com/DoyleJ11/partyroom-backend/internal/types"
)

const (
	ReasonHostLeft = "Host disconnected. Room closed."

	destroyTimeout = 5 * time.Second
)

type Options struct {
	IdentifyTimeout time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration // zero disables the read deadline
	OutboxSize      int
	OriginPatterns  []string
	Logger          *zap.Logger
	Tracker         *Tracker
}

func (o *Options) defaults() {
	if o.IdentifyTimeout <= 0 {
		o.IdentifyTimeout = 2 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 32
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Tracker == nil {
		o.Tracker = NewTracker()
	}
}

type handler struct {
	hub  *hub.Hub
	opts Options
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	opts.defaults()
	hd := &handler{hub: h, opts: opts}
	return hd.serve
}

func (hd *handler) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: hd.opts.OriginPatterns,
	})
	if err != nil {
		hd.opts.Logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newClient(hd.opts.OutboxSize)
	log := hd.opts.Logger.With(zap.String("conn", c.ID))
	log.Debug("connection opened", zap.String("remote", r.RemoteAddr))

	hd.opts.Tracker.connected()
	defer func() { hd.opts.Tracker.disconnected(c.role) }()
	defer hd.disconnect(c, log)

	// Writer goroutine
	writerDone := make(chan struct{})
	go hd.writeLoop(ctx, conn, c.outbox, writerDone, log)

	// Reader goroutine
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go hd.readLoop(ctx, conn, frames, readErr)

	identifyTimer := time.NewTimer(hd.opts.IdentifyTimeout)
	defer identifyTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-writerDone:
			return

		case err := <-readErr:
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Debug("connection closed by peer")
			default:
				log.Debug("read failed", zap.Error(err))
			}
			return

		case <-identifyTimer.C:
			if c.role != "" {
				continue
			}
			log.Info("no identify within grace window, assuming presenter")
			if err := hd.identify(ctx, c, types.RolePresenter, log); err != nil {
				log.Error("identify failed", zap.Error(err))
				conn.Close(websocket.StatusInternalError, "could not create room")
				return
			}

		case frame := <-frames:
			if err := hd.handleFrame(ctx, c, frame, log); err != nil {
				log.Error("frame handling failed", zap.Error(err))
				conn.Close(websocket.StatusInternalError, "internal error")
				return
			}
		}
	}
}

// writeLoop drains the outbox onto the socket. A closed outbox means the
// room is gone or dropped this client, so the socket is closed too.
func (hd *handler) writeLoop(ctx context.Context, conn *websocket.Conn, outbox <-chan types.ServerMessage, done chan<- struct{}, log *zap.Logger) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-outbox:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "room closed")
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				log.Error("encode outbound message", zap.String("type", msg.Type), zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, hd.opts.WriteTimeout)
			err = conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				log.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}

func (hd *handler) readLoop(ctx context.Context, conn *websocket.Conn, frames chan<- []byte, readErr chan<- error) {
	for {
		rctx, cancel := ctx, context.CancelFunc(func() {})
		if hd.opts.IdleTimeout > 0 {
			rctx, cancel = context.WithTimeout(ctx, hd.opts.IdleTimeout)
		}
		_, data, err := conn.Read(rctx)
		cancel()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (hd *handler) handleFrame(ctx context.Context, c *Client, frame []byte, log *zap.Logger) error {
	in, err := types.Decode(frame)
	if err != nil {
		log.Debug("dropping frame", zap.Error(err))
		return nil
	}

	switch m := in.(type) {
	case types.Identify:
		return hd.identify(ctx, c, m.Role, log)

	case types.JoinRoom:
		return hd.join(ctx, c, m, log)

	case types.RoomScoped:
		if c.room == nil || m.Room() != c.room.Code() {
			log.Debug("dropping message for another room",
				zap.String("type", types.TypeName(m)), zap.String("room", m.Room()))
			return nil
		}
		cmd, ok := toEngineCommand(c.ID, m)
		if !ok {
			return nil
		}
		c.room.Send(session.FromClient{Cmd: cmd})
	}
	return nil
}

func (hd *handler) identify(ctx context.Context, c *Client, role types.Role, log *zap.Logger) error {
	if !c.identify(role) {
		log.Debug("ignoring repeated identify", zap.String("role", string(role)))
		return nil
	}
	hd.opts.Tracker.identified(role)

	switch role {
	case types.RolePresenter:
		room, err := hd.hub.CreateRoom(ctx, c.ID, c.outbox)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		c.room = room
		log.Info("presenter identified", zap.String("room", room.Code()))

	case types.RoleParticipant:
		c.send(types.Welcome())
		log.Debug("participant identified")
	}
	return nil
}

func (hd *handler) join(ctx context.Context, c *Client, m types.JoinRoom, log *zap.Logger) error {
	// Web players that skip identify are still players.
	if c.role == "" {
		c.identify(types.RoleParticipant)
		hd.opts.Tracker.identified(types.RoleParticipant)
	}
	if c.role != types.RoleParticipant || c.room != nil {
		log.Debug("dropping joinRoom", zap.String("role", string(c.role)))
		return nil
	}

	room, err := hd.hub.Room(ctx, m.RoomCode)
	if errors.Is(err, hub.ErrRoomNotFound) {
		c.send(types.JoinFailed(joinFailReason(err)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up room %s: %w", m.RoomCode, err)
	}

	reply := make(chan error, 1)
	if !room.Send(session.Join{ConnID: c.ID, PlayerName: m.PlayerName, Outbox: c.outbox, Reply: reply}) {
		c.send(types.JoinFailed(joinFailReason(hub.ErrRoomNotFound)))
		return nil
	}

	select {
	case err = <-reply:
	case <-room.Done():
		// The reply is written before the room stops, so check it once more.
		select {
		case err = <-reply:
		default:
			err = hub.ErrRoomNotFound
		}
	case <-ctx.Done():
		// The join may still land; queue a leave behind it.
		room.Send(session.Leave{ConnID: c.ID})
		return ctx.Err()
	}

	if err != nil {
		log.Info("join rejected", zap.String("room", m.RoomCode), zap.Error(err))
		c.send(types.JoinFailed(joinFailReason(err)))
		return nil
	}
	c.room = room
	log.Info("joined room", zap.String("room", room.Code()), zap.String("player", m.PlayerName))
	return nil
}

// disconnect runs once the socket is gone. A presenter takes the room down
// with them; a participant just leaves it.
func (hd *handler) disconnect(c *Client, log *zap.Logger) {
	if c.room == nil {
		return
	}
	switch c.role {
	case types.RolePresenter:
		ctx, cancel := context.WithTimeout(context.Background(), destroyTimeout)
		defer cancel()
		if err := hd.hub.DestroyRoom(ctx, c.room.Code(), ReasonHostLeft); err != nil {
			log.Warn("destroy room", zap.String("room", c.room.Code()), zap.Error(err))
		}
	case types.RoleParticipant:
		c.room.Send(session.Leave{ConnID: c.ID})
	}
	log.Debug("connection closed", zap.String("room", c.room.Code()))
}

func joinFailReason(err error) string {
	switch {
	case errors.Is(err, hub.ErrRoomNotFound):
		return "Room not found!"
	case errors.Is(err, engine.ErrNameTaken):
		return "That name is already taken!"
	case errors.Is(err, engine.ErrInvalidName):
		return fmt.Sprintf("Names must be 1-%d characters.", engine.MaxNameLen)
	default:
		return "Could not join room."
	}
}

func toEngineCommand(connID string, m types.RoomScoped) (engine.Command, bool) {
	switch m := m.(type) {
	case types.ChooseCharacter:
		return engine.Command{Type: engine.CmdChooseCharacter, ConnID: connID, PlayerName: m.PlayerName, Character: m.Character, Previous: m.Previous}, true
	case types.ReleaseCharacter:
		return engine.Command{Type: engine.CmdReleaseCharacter, ConnID: connID, Character: m.Character}, true
	case types.LockCharacter:
		return engine.Command{Type: engine.CmdLockCharacter, ConnID: connID, PlayerName: m.PlayerName}, true
	case types.StartCountdown:
		return engine.Command{Type: engine.CmdStartCountdown, ConnID: connID}, true
	case types.PlayerRolledDice:
		return engine.Command{Type: engine.CmdRollDice, ConnID: connID, PlayerName: m.PlayerName, RollValue: m.RollValue}, true
	case types.SetTiePolicy:
		return engine.Command{Type: engine.CmdSetTiePolicy, ConnID: connID, Policy: m.Policy}, true
	case types.EndGameStats:
		return engine.Command{Type: engine.CmdEndGameStats, ConnID: connID, PlayerName: m.PlayerName, Character: m.Character, Position: m.Position}, true
	default:
		return engine.Command{}, false
	}
}
