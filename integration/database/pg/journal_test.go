package pg_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gate/core/command"
	"github.com/dmitrymomot/gate/core/event"
	"github.com/dmitrymomot/gate/integration/database/pg"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	mu    sync.Mutex
	calls []execCall
	err   error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

type UserCreated struct {
	Email string `json:"email"`
}

func TestJournal(t *testing.T) {
	t.Parallel()

	t.Run("rejects unsafe table names", func(t *testing.T) {
		t.Parallel()

		_, err := pg.NewJournal(&fakeExecer{}, "events; drop table users")
		assert.ErrorIs(t, err, pg.ErrInvalidTableName)

		_, err = pg.NewJournal(&fakeExecer{}, "audit.event_journal")
		assert.NoError(t, err)
	})

	t.Run("records published events", func(t *testing.T) {
		t.Parallel()

		db := &fakeExecer{}
		journal, err := pg.NewJournal(db, "event_journal")
		require.NoError(t, err)

		bus := event.NewBus()
		require.NoError(t, bus.Subscribe(journal.Subscriber()))
		require.NoError(t, bus.Publish(context.Background(), UserCreated{Email: "a@b.c"}))

		require.Len(t, db.calls, 1)
		call := db.calls[0]
		assert.Contains(t, call.sql, "INSERT INTO event_journal")
		require.Len(t, call.args, 5)
		assert.Equal(t, "UserCreated", call.args[1])

		var payload map[string]string
		require.NoError(t, jsoniter.Unmarshal(call.args[2].([]byte), &payload))
		assert.Equal(t, "a@b.c", payload["email"])
		assert.Nil(t, call.args[3])
	})

	t.Run("correlates with the running command", func(t *testing.T) {
		t.Parallel()

		db := &fakeExecer{}
		journal, err := pg.NewJournal(db, "event_journal")
		require.NoError(t, err)

		h := command.NewHandlerFunc(func(ctx context.Context, cmd UserCreated) (bool, error) { return true, nil })
		ec := command.NewExecutionContext(UserCreated{}, h)
		ctx := command.WithExecution(context.Background(), ec)

		require.NoError(t, journal.Record(ctx, UserCreated{Email: "x@y.z"}))
		require.Len(t, db.calls, 1)
		commandID, ok := db.calls[0].args[3].(*string)
		require.True(t, ok)
		assert.Equal(t, ec.ID, *commandID)
	})

	t.Run("write failures are reported to the bus", func(t *testing.T) {
		t.Parallel()

		db := &fakeExecer{err: errors.New("connection reset")}
		journal, err := pg.NewJournal(db, "event_journal")
		require.NoError(t, err)

		var failures []error
		bus := event.NewBus(event.WithErrorHandler(func(ctx context.Context, d event.Delivery, err error) {
			failures = append(failures, err)
		}))
		require.NoError(t, bus.Subscribe(journal.Subscriber()))

		require.NoError(t, bus.Publish(context.Background(), UserCreated{}))
		require.Len(t, failures, 1)
		assert.Contains(t, failures[0].Error(), "connection reset")
		assert.Equal(t, int64(1), bus.Stats().Failed)
	})

	t.Run("ensure schema", func(t *testing.T) {
		t.Parallel()

		db := &fakeExecer{}
		journal, err := pg.NewJournal(db, "event_journal")
		require.NoError(t, err)

		require.NoError(t, journal.EnsureSchema(context.Background()))
		require.Len(t, db.calls, 1)
		assert.Contains(t, db.calls[0].sql, "CREATE TABLE IF NOT EXISTS event_journal")
	})
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, pg.IsDuplicateKeyError(&pgconn.PgError{Code: "23505"}))
	assert.True(t, pg.IsUndefinedTableError(&pgconn.PgError{Code: "42P01"}))
	assert.False(t, pg.IsDuplicateKeyError(errors.New("other")))
}

func TestContext(t *testing.T) {
	t.Parallel()

	_, ok := pg.TxFromContext(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.Background(), pg.WithTx(context.Background(), nil))
}
