package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	s, err := store.GetOrCreate(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", s.ID)
	assert.Nil(t, s.State)
	assert.Empty(t, s.Logs)

	require.NoError(t, store.Append(ctx, "s-1", Log{From: SenderPlayer, Text: "너 어디 있었어?"}))
	require.NoError(t, store.Append(ctx, "s-1", Log{From: SenderNPC, Text: "가게에 있었어요."}))
	require.NoError(t, store.SetState(ctx, "s-1", State{Node: "deny", Flags: []string{"met"}}))

	s, err = store.GetOrCreate(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, []Log{
		{From: SenderPlayer, Text: "너 어디 있었어?"},
		{From: SenderNPC, Text: "가게에 있었어요."},
	}, s.Logs)
	require.NotNil(t, s.State)
	assert.Equal(t, State{Node: "deny", Flags: []string{"met"}}, *s.State)

	require.NoError(t, store.SetState(ctx, "s-1", State{Node: "crack"}))
	s, err = store.GetOrCreate(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, State{Node: "crack", Flags: []string{}}, *s.State)

	// appending to an unseen id creates it
	require.NoError(t, store.Append(ctx, "s-2", Log{From: SenderNPC, Text: "..."}))
	s2, err := store.GetOrCreate(ctx, "s-2")
	require.NoError(t, err)
	assert.Len(t, s2.Logs, 1)

	other, err := store.GetOrCreate(ctx, "s-3")
	require.NoError(t, err)
	assert.Empty(t, other.Logs)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreReturnsSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetState(ctx, "s", State{Node: "deny", Flags: []string{"met"}}))

	s, err := store.GetOrCreate(ctx, "s")
	require.NoError(t, err)
	s.State.Flags[0] = "mutated"
	s.Logs = append(s.Logs, Log{From: SenderNPC, Text: "x"})

	again, err := store.GetOrCreate(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"met"}, again.State.Flags)
	assert.Empty(t, again.Logs)
}

func TestSQLStoreSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "sessions.db")
	store, err := OpenSQL(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store)
}

func TestSQLStoreSchemaIsIdempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "sessions.db")
	first, err := OpenSQL(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, first.Append(context.Background(), "s", Log{From: SenderPlayer, Text: "hi"}))
	require.NoError(t, first.Close())

	second, err := OpenSQL(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	s, err := second.GetOrCreate(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, s.Logs, 1)
}

func TestOpenSQLUnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "oracle", "x")
	require.Error(t, err)
}
