package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const drainTimeout = 2 * time.Second

// Async buffers events in memory and writes them to a Sink from its own
// goroutine, so rooms never wait on the database.
type Async struct {
	sink   Sink
	events chan Event
	log    *zap.Logger
}

func NewAsync(sink Sink, buffer int, log *zap.Logger) *Async {
	if buffer < 1 {
		buffer = 1
	}
	return &Async{sink: sink, events: make(chan Event, buffer), log: log}
}

func (a *Async) Record(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	select {
	case a.events <- e:
	default:
		a.log.Warn("journal buffer full, dropping event",
			zap.String("room", e.RoomCode), zap.String("kind", string(e.Kind)))
	}
}

// Run writes events until ctx is cancelled, then flushes what is already
// buffered.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return nil
		case e := <-a.events:
			a.write(ctx, e)
		}
	}
}

func (a *Async) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-a.events:
			a.write(ctx, e)
		default:
			return
		}
	}
}

func (a *Async) write(ctx context.Context, e Event) {
	if err := a.sink.Insert(ctx, e); err != nil {
		a.log.Warn("journal write failed", zap.Error(err))
	}
}
