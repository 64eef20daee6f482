package hub

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/partyroom-backend/internal/engine"
	"github.com/DoyleJ11/partyroom-backend/internal/session"
	"github.com/DoyleJ11/partyroom-backend/internal/store"
	"github.com/DoyleJ11/partyroom-backend/internal/types"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrCodeSpaceExhausted = errors.New("no free room code")
	ErrHubClosed          = errors.New("hub closed")
)

const (
	maxCodeAttempts = 64

	ReasonServerShutdown = "Server shutting down."
)

type HubMsg interface{ isHubMsg() }

// CreateRoom opens a room owned by the presenter connection. The presenter's
// outbox is registered before the coordinator starts, so roomCreated is the
// first thing it receives.
type CreateRoom struct {
	PresenterID string
	Outbox      chan types.ServerMessage
	Reply       chan CreateResult
}

type CreateResult struct {
	Room *session.Coordinator
	Err  error
}

type GetRoom struct {
	Code  string
	Reply chan *session.Coordinator
}

// DestroyRoom removes the room from the registry and shuts its coordinator
// down. Done, if set, is closed once the coordinator has exited.
type DestroyRoom struct {
	Code   string
	Reason string
	Done   chan struct{}
}

type GetStats struct {
	Reply chan Stats
}

type Stats struct {
	Rooms int      `json:"rooms"`
	Codes []string `json:"codes"`
}

type ShutdownHub struct {
	Done chan struct{}
}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (DestroyRoom) isHubMsg() {}
func (GetStats) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	Rules        engine.Rules
	TickInterval time.Duration
	Logger       *zap.Logger
	Recorder     store.Recorder
	NewCode      CodeGen
}

// Hub is the room registry. It owns the code -> coordinator map and is the
// only goroutine that touches it.
type Hub struct {
	inbox chan HubMsg
	rooms map[string]*session.Coordinator
	opts  Options
	log   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = store.Nop{}
	}
	if opts.NewCode == nil {
		opts.NewCode = RandomCode
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*session.Coordinator),
		opts:   opts,
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			// Coordinators share our context and close themselves.
			clear(h.rooms)
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				room, err := h.create(msg)
				msg.Reply <- CreateResult{Room: room, Err: err}

			case GetRoom:
				msg.Reply <- h.rooms[engine.NormalizeCode(msg.Code)] // May be nil

			case DestroyRoom:
				h.destroy(msg)

			case GetStats:
				codes := make([]string, 0, len(h.rooms))
				for code := range h.rooms {
					codes = append(codes, code)
				}
				slices.Sort(codes)
				msg.Reply <- Stats{Rooms: len(codes), Codes: codes}

			case ShutdownHub:
				h.shutdown()
				if msg.Done != nil {
					close(msg.Done)
				}
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateRoom) (*session.Coordinator, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := h.opts.NewCode()
		if err != nil {
			return nil, err
		}
		if _, taken := h.rooms[code]; taken {
			continue
		}

		room := session.New(h.ctx, session.Options{
			Code:         code,
			PresenterID:  msg.PresenterID,
			Presenter:    msg.Outbox,
			Rules:        h.opts.Rules,
			TickInterval: h.opts.TickInterval,
			Logger:       h.log,
			Recorder:     h.opts.Recorder,
		})
		h.rooms[code] = room
		return room, nil
	}
	h.log.Error("room code space exhausted", zap.Int("rooms", len(h.rooms)))
	return nil, ErrCodeSpaceExhausted
}

// destroy drops the entry before the coordinator shuts down so no new join
// can find a closing room.
func (h *Hub) destroy(msg DestroyRoom) {
	code := engine.NormalizeCode(msg.Code)
	room, ok := h.rooms[code]
	if !ok {
		if msg.Done != nil {
			close(msg.Done)
		}
		return
	}
	delete(h.rooms, code)

	go func() {
		room.Send(session.Shutdown{Reason: msg.Reason})
		<-room.Done()
		if msg.Done != nil {
			close(msg.Done)
		}
	}()
}

func (h *Hub) shutdown() {
	for code, room := range h.rooms {
		room.Send(session.Shutdown{Reason: ReasonServerShutdown})
		<-room.Done()
		delete(h.rooms, code)
	}
	h.log.Info("hub shut down")
}

// CreateRoom asks the registry for a new room owned by presenterID.
func (h *Hub) CreateRoom(ctx context.Context, presenterID string, outbox chan types.ServerMessage) (*session.Coordinator, error) {
	reply := make(chan CreateResult, 1)
	if err := h.send(ctx, CreateRoom{PresenterID: presenterID, Outbox: outbox, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Room, res.Err
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Room looks a code up. It returns ErrRoomNotFound when no live room uses it.
func (h *Hub) Room(ctx context.Context, code string) (*session.Coordinator, error) {
	reply := make(chan *session.Coordinator, 1)
	if err := h.send(ctx, GetRoom{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case room := <-reply:
		if room == nil {
			return nil, ErrRoomNotFound
		}
		return room, nil
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DestroyRoom closes the room and waits until its coordinator has stopped.
func (h *Hub) DestroyRoom(ctx context.Context, code, reason string) error {
	done := make(chan struct{})
	if err := h.send(ctx, DestroyRoom{Code: code, Reason: reason, Done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := h.send(ctx, GetStats{Reply: reply}); err != nil {
		return Stats{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.ctx.Done():
		return Stats{}, ErrHubClosed
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Shutdown closes every room and stops the registry.
func (h *Hub) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	if err := h.send(ctx, ShutdownHub{Done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) send(ctx context.Context, msg HubMsg) error {
	select {
	case h.inbox <- msg:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
