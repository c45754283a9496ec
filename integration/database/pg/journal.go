package pg

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"

	"github.com/dmitrymomot/gate/core/command"
	"github.com/dmitrymomot/gate/core/event"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Journal appends every published event to a table.
type Journal struct {
	db     Execer
	table  string
	insert string
	now    func() time.Time
}

// NewJournal creates a journal writing to table.
func NewJournal(db Execer, table string) (*Journal, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}

	return &Journal{
		db:     db,
		table:  table,
		insert: fmt.Sprintf(`INSERT INTO %s (id, event_name, payload, command_id, recorded_at) VALUES ($1, $2, $3, $4, $5)`, table),
		now:    time.Now,
	}, nil
}

// EnsureSchema creates the journal table when it does not exist.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	_, err := j.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          UUID PRIMARY KEY,
	event_name  TEXT NOT NULL,
	payload     JSONB NOT NULL,
	command_id  TEXT,
	recorded_at TIMESTAMPTZ NOT NULL
)`, j.table))
	if err != nil {
		return fmt.Errorf("create %s: %w", j.table, err)
	}
	return nil
}

// Subscriber returns the event subscriber that records events. Events
// published from a command handler carry the command's execution id.
// A transaction attached with WithTx is used instead of the journal's connection.
func (j *Journal) Subscriber() event.Subscriber {
	return event.NewSubscriber("event-journal", j.Record)
}

// Record writes one event.
func (j *Journal) Record(ctx context.Context, evt any) error {
	payload, err := jsoniter.ConfigFastest.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Name(evt), err)
	}

	var commandID *string
	if id := command.CommandID(ctx); id != "" {
		commandID = &id
	}

	if _, err := conn(ctx, j.db).Exec(ctx, j.insert, uuid.New(), event.Name(evt), payload, commandID, j.now().UTC()); err != nil {
		return fmt.Errorf("journal %s: %w", event.Name(evt), err)
	}
	return nil
}
