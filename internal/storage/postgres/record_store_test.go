package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/openquant/collector/internal/collector"
)

func TestSaveRecordInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "records")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()

	rec := collector.Record{
		ID:          "uuid-v7",
		Source:      "ons-cpi",
		Series:      "cpi.food.monthly",
		Period:      "2023-10",
		Value:       132.4,
		Currency:    "GBP",
		URL:         "https://example.com/cpi",
		Hash:        "abc123",
		BlobURI:     "gs://bucket/path",
		CollectedAt: now,
		Metadata:    map[string]any{"revision": "first"},
	}

	mock.ExpectExec("INSERT INTO records").
		WithArgs(
			rec.ID,
			rec.Source,
			rec.Series,
			rec.Period,
			rec.Value,
			rec.Currency,
			rec.URL,
			rec.Hash,
			rec.BlobURI,
			rec.CollectedAt,
			[]byte(`{"revision":"first"}`),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.SaveRecord(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, "uuid-v7", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRecordRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "records")
	require.NoError(t, err)

	_, err = store.SaveRecord(context.Background(), collector.Record{})
	require.ErrorContains(t, err, "record id is required")
}

func TestNewRecordStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRecordStoreWithPool(mock, "records; drop table users")
	require.ErrorContains(t, err, "invalid table name")
}

func TestPingDelegatesToPool(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "records")
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
