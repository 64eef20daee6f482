package store

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupJournal(t *testing.T) (*Journal, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig())
	require.NoError(t, err)
	return NewJournal(db), mock
}

func TestJournal_Insert(t *testing.T) {
	j, mock := setupJournal(t)
	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "session_events"`)).
		WithArgs("WXYZ", "order_finalized", `{"order":["Ben","Ana"]}`, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	err := j.Insert(context.Background(), Event{
		RoomCode: "WXYZ",
		Kind:     KindOrderFinalized,
		Detail:   map[string]any{"order": []string{"Ben", "Ana"}},
		At:       at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_InsertError(t *testing.T) {
	j, mock := setupJournal(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "session_events"`)).
		WillReturnError(errors.New("connection reset"))

	err := j.Insert(context.Background(), Event{RoomCode: "WXYZ", Kind: KindRoomClosed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room_closed for WXYZ")
}

type memSink struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
	want   int
}

func (m *memSink) Insert(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	if len(m.events) == m.want {
		close(m.done)
	}
	return nil
}

func TestAsync_WritesInOrder(t *testing.T) {
	sink := &memSink{done: make(chan struct{}), want: 2}
	a := NewAsync(sink, 8, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()

	a.Record(Event{RoomCode: "WXYZ", Kind: KindRoomCreated})
	a.Record(Event{RoomCode: "WXYZ", Kind: KindRoomClosed})

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for journal writes")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 2)
	assert.Equal(t, KindRoomCreated, sink.events[0].Kind)
	assert.Equal(t, KindRoomClosed, sink.events[1].Kind)
	assert.False(t, sink.events[0].At.IsZero())
}

func TestAsync_DropsWhenFullAndDrainsOnStop(t *testing.T) {
	sink := &memSink{done: make(chan struct{}), want: -1}
	a := NewAsync(sink, 1, zap.NewNop())

	a.Record(Event{RoomCode: "AAAA", Kind: KindRoomCreated})
	a.Record(Event{RoomCode: "BBBB", Kind: KindRoomCreated}) // buffer full, dropped

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1)
	assert.Equal(t, "AAAA", sink.events[0].RoomCode)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.Record(Event{RoomCode: "WXYZ"})
}
