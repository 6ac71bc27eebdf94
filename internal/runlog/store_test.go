package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	db, err := Config{File: ":memory:"}.OpenDB()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 0)

	base := time.Date(2024, 12, 20, 16, 8, 0, 0, time.UTC)
	first := Run{
		ID:         "run-1",
		StartedAt:  base,
		FinishedAt: base.Add(time.Minute),
		Status:     "completed",
		Output:     "data/UOA_20241220_160800.csv",
		Rows:       15,
		Sources: []SourceRun{
			{Source: "Stocks", Status: "completed", Rows: 10},
			{Source: "ETFs", Status: "timed-out", Error: "download did not materialize"},
			{Source: "Indices", Status: "completed", Rows: 5},
		},
	}
	second := Run{
		ID:         "run-2",
		StartedAt:  base.Add(time.Hour),
		FinishedAt: base.Add(time.Hour + time.Second),
		Status:     "failed",
		Error:      "authentication did not complete in time",
	}
	require.NoError(t, store.Record(ctx, first))
	require.NoError(t, store.Record(ctx, second))

	runs, err = store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "run-2", runs[0].ID)
	require.Empty(t, runs[0].Sources)

	got := runs[1]
	require.Equal(t, first.ID, got.ID)
	require.True(t, first.StartedAt.Equal(got.StartedAt))
	require.Equal(t, first.Rows, got.Rows)
	require.Equal(t, first.Sources, got.Sources)

	runs, err = store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	// ids are unique
	require.Error(t, store.Record(ctx, first))
}

func TestOpenDBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history", "runs.db")
	db, err := Config{File: path}.OpenDB()
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// reopening an existing database keeps the schema idempotent
	db, err = Config{File: path}.OpenDB()
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Config{}.OpenDB()
	require.Error(t, err)
}
