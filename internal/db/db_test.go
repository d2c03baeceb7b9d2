package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.Migrate())
}

func TestRecordAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)

	first, err := db.Record(ctx, HistoryEntry{
		RefID: "A", QueryType: "search", DisplayText: "cart",
		QueryJSON: `{"queryType":"search","service":"cart"}`, Status: StatusSuccess,
		DurationMS: 12, CreatedAt: base,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = db.Record(ctx, HistoryEntry{
		RefID: "B", QueryType: "lookup", DisplayText: "abc",
		QueryJSON: `{"queryType":"lookup","query":"abc"}`, Status: StatusError,
		Error: "Jaeger: Not Found. 404", CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)

	entries, err := db.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "B", entries[0].RefID)
	assert.Equal(t, StatusError, entries[0].Status)
	assert.Equal(t, "Jaeger: Not Found. 404", entries[0].Error)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, int64(12), entries[1].DurationMS)
	assert.True(t, base.Equal(entries[1].CreatedAt))

	limited, err := db.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListEmpty(t *testing.T) {
	db := openTestDB(t)

	entries, err := db.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}
