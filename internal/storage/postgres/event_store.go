package postgres

import (
	"context"
	"fmt"

	"github.com/openquant/collector/internal/bus"
)

// EventStore persists module lifecycle events so operators can inspect
// start, stop, error, and health history after the fact.
type EventStore struct {
	pool  pool
	table string
}

// NewEventStoreWithPool constructs an event store on an existing pool. The
// pool is shared with the record store; the caller owns its Close.
func NewEventStoreWithPool(p pool, table string) (*EventStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "module_events"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &EventStore{pool: p, table: table}, nil
}

// SaveEvent inserts one lifecycle event row.
func (s *EventStore) SaveEvent(ctx context.Context, evt bus.Event) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("event store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	occurred_at,
	event_type,
	module,
	status,
	note
) VALUES (
	$1,$2,$3,$4,$5,$6
)`, s.table)

	args := []any{
		evt.ID,
		evt.TS,
		string(evt.Type),
		evt.Module,
		evt.Status,
		evt.Note,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert lifecycle event: %w", err)
	}
	return nil
}
