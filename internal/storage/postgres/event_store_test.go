package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/openquant/collector/internal/bus"
)

func TestSaveEventInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStoreWithPool(mock, "module_events")
	require.NoError(t, err)

	evt := bus.New(bus.TypeModuleStarted, "storage")
	evt.TS = time.Unix(1700000000, 0).UTC()
	evt.Status = "running"

	mock.ExpectExec("INSERT INTO module_events").
		WithArgs(evt.ID, evt.TS, "MODULE_STARTED", "storage", "running", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveEvent(context.Background(), evt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewEventStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewEventStoreWithPool(mock, "events; drop table records")
	require.ErrorContains(t, err, "invalid table name")
}
