package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/partyroom-backend/internal/engine"
	"github.com/DoyleJ11/partyroom-backend/internal/store"
	"github.com/DoyleJ11/partyroom-backend/internal/types"
)

const inboxSize = 64

var ErrClosed = errors.New("room closed")

type Options struct {
	Code         string
	PresenterID  string
	Presenter    chan types.ServerMessage
	Rules        engine.Rules
	TickInterval time.Duration
	Logger       *zap.Logger
	Recorder     store.Recorder
}

// Coordinator owns one room. Every change to the room happens on its loop
// goroutine, one message at a time.
type Coordinator struct {
	inbox   chan Msg
	room    *engine.Room
	clients map[string]chan types.ServerMessage

	timer    *time.Timer
	timerGen uint64
	tick     time.Duration

	log *zap.Logger
	rec store.Recorder

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, opts Options) *Coordinator {
	ctx, cancel := context.WithCancel(parent)

	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = store.Nop{}
	}

	c := &Coordinator{
		inbox:   make(chan Msg, inboxSize),
		room:    engine.NewRoom(opts.Code, opts.PresenterID, opts.Rules),
		clients: map[string]chan types.ServerMessage{opts.PresenterID: opts.Presenter},
		tick:    opts.TickInterval,
		log:     opts.Logger.With(zap.String("room", opts.Code)),
		rec:     opts.Recorder,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	c.sendTo(opts.PresenterID, types.RoomCreated(opts.Code))
	c.record(store.KindRoomCreated, map[string]any{"presenter": opts.PresenterID})
	c.log.Info("room created", zap.String("presenter", opts.PresenterID))

	go c.loop()
	return c
}

func (c *Coordinator) Code() string { return c.room.Code }

// Send queues m for the loop. It reports false once the room has closed,
// which is how late timer fires and late disconnects become no-ops.
func (c *Coordinator) Send(m Msg) bool {
	select {
	case c.inbox <- m:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// Done is closed when the loop has exited and every outbox is closed.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// State asks the loop for a consistent view of the room.
func (c *Coordinator) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !c.Send(GetState{Reply: reply}) {
		return View{}, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-c.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return View{}, ErrClosed
		}
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (c *Coordinator) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown("Server shutting down.")
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Join:
				c.handleJoin(msg)

			case Leave:
				c.handleLeave(msg.ConnID)

			case FromClient:
				c.handleCommand(msg.Cmd)

			case Tick:
				c.handleTick(msg)

			case GetState:
				msg.Reply <- View{
					Room:        c.room.Snapshot(),
					Leaderboard: c.room.Leaderboard(),
					NumClients:  len(c.clients),
					TimerArmed:  c.timer != nil,
				}

			case Shutdown:
				c.shutdown(msg.Reason)
				return
			}
		}
	}
}

func (c *Coordinator) handleJoin(msg Join) {
	events, err := engine.Apply(c.room, engine.Command{
		Type:       engine.CmdJoin,
		ConnID:     msg.ConnID,
		PlayerName: msg.PlayerName,
	})
	if err != nil {
		msg.Reply <- err
		return
	}
	c.clients[msg.ConnID] = msg.Outbox
	msg.Reply <- nil

	p := c.room.PlayerByConn(msg.ConnID)
	snap := c.room.Snapshot()
	c.sendTo(msg.ConnID, types.JoinedRoom(p.Name, snap))
	c.sendTo(msg.ConnID, types.LoadGamePage(p.Name, snap))
	c.sendTo(msg.ConnID, types.UpdateCharacterSelection(c.room.CharacterMap()))
	c.dispatch(events)
}

func (c *Coordinator) handleLeave(connID string) {
	delete(c.clients, connID)
	events, err := engine.Apply(c.room, engine.Command{Type: engine.CmdLeave, ConnID: connID})
	if err != nil {
		return
	}
	c.dispatch(events)
}

func (c *Coordinator) handleCommand(cmd engine.Command) {
	events, err := engine.Apply(c.room, cmd)
	switch {
	case err == nil:
		c.dispatch(events)
	case errors.Is(err, engine.ErrCharacterTaken):
		c.sendTo(cmd.ConnID, types.CharacterTaken(cmd.Character))
	default:
		// Unauthorized and stale commands are dropped without telling the client.
		c.log.Debug("command rejected",
			zap.String("cmd", string(cmd.Type)),
			zap.String("conn", cmd.ConnID),
			zap.Error(err))
	}
}

func (c *Coordinator) handleTick(msg Tick) {
	if c.timer == nil || msg.Gen != c.timerGen {
		return
	}
	c.timer = nil

	events, _ := engine.Apply(c.room, engine.Command{Type: engine.CmdTick})
	c.dispatch(events)
	if c.room.CountdownRunning() {
		c.armTimer()
	}
}

func (c *Coordinator) dispatch(events []engine.Event) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtPlayerJoined:
			c.broadcast(types.UpdateRoom(c.room.Snapshot()))
			c.record(store.KindPlayerJoined, map[string]any{"player": ev.PlayerName})
			c.log.Info("player joined", zap.String("player", ev.PlayerName), zap.String("conn", ev.ConnID))

		case engine.EvtPlayerLeft:
			c.broadcast(types.UpdateRoom(c.room.Snapshot()))
			c.record(store.KindPlayerLeft, map[string]any{"player": ev.PlayerName})
			c.log.Info("player left", zap.String("player", ev.PlayerName))

		case engine.EvtCharactersChanged:
			c.broadcast(types.UpdateCharacterSelection(c.room.CharacterMap()))

		case engine.EvtPlayerLocked, engine.EvtTiePolicyChanged:
			c.broadcast(types.UpdateRoom(c.room.Snapshot()))

		case engine.EvtAllPlayersReady:
			c.sendTo(c.room.PresenterID, types.AllPlayersReady())

		case engine.EvtCountdownStarted:
			c.broadcast(types.CountdownUpdate(ev.Value))
			c.armTimer()
			c.record(store.KindCountdownStarted, map[string]any{"seconds": ev.Value})

		case engine.EvtCountdownTicked:
			c.broadcast(types.CountdownUpdate(ev.Value))

		case engine.EvtCountdownFinished:
			c.stopTimer()
			c.broadcast(types.PromptDiceRoll())
			c.broadcast(types.StartGame())

		case engine.EvtDiceRolled:
			c.sendTo(c.room.PresenterID, types.DiceRolled(ev.PlayerName, ev.Value))

		case engine.EvtOrderFinalized:
			c.broadcast(types.PlayerOrderFinalized(ev.Order))
			c.record(store.KindOrderFinalized, map[string]any{"order": ev.Order})
			c.log.Info("turn order finalized", zap.Strings("order", ev.Order))

		case engine.EvtTieDetected:
			c.broadcast(types.TieDetected(ev.Ties))

		case engine.EvtLeaderboardUpdated:
			c.broadcast(types.FinalLeaderboard(c.room.Leaderboard()))
		}
	}
}

// armTimer schedules the next tick. Bumping the generation first means a
// fire from any earlier arm is recognised as stale.
func (c *Coordinator) armTimer() {
	c.stopTimer()
	gen := c.timerGen
	c.timer = time.AfterFunc(c.tick, func() { c.Send(Tick{Gen: gen}) })
}

func (c *Coordinator) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}

func (c *Coordinator) shutdown(reason string) {
	c.stopTimer()
	c.room.CancelCountdown()

	c.broadcast(types.RoomClosed(reason))
	for id, ch := range c.clients {
		close(ch) // no more messages for this client
		delete(c.clients, id)
	}
	c.record(store.KindRoomClosed, map[string]any{"reason": reason})
	c.log.Info("room closed", zap.String("reason", reason))
	c.cancel()
}

func (c *Coordinator) broadcast(msg types.ServerMessage) {
	for id := range c.clients {
		c.sendTo(id, msg)
	}
}

func (c *Coordinator) sendTo(connID string, msg types.ServerMessage) {
	ch, ok := c.clients[connID]
	if !ok {
		return
	}
	select {
	case ch <- msg:
		// ok
	default:
		// Client is slow/full - drop them. Their transport sees the closed
		// outbox and disconnects, which arrives back here as a Leave.
		close(ch)
		delete(c.clients, connID)
		c.log.Warn("dropped slow client", zap.String("conn", connID))
	}
}

func (c *Coordinator) record(kind store.Kind, detail map[string]any) {
	c.rec.Record(store.Event{RoomCode: c.room.Code, Kind: kind, Detail: detail})
}
