package vars

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/sieve/internal/db"
)

func TestSQLite_RoundTrip(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	store := NewSQLite(database)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, OwnerChatID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, OwnerChatID, "42"))
	v, ok, err := store.Get(ctx, OwnerChatID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "42", v)

	require.NoError(t, store.Set(ctx, HQChatID, "-100"))
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, HQChatID, list[0].Name)
	require.Equal(t, OwnerChatID, list[1].Name)
}

func TestMemory(t *testing.T) {
	m := NewMemory(map[string]string{HQChatID: "-1"})
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, OwnerChatID, "7"))
	v, ok, err := m.Get(ctx, OwnerChatID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "7", v)
	v, ok, err = m.Get(ctx, HQChatID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "-1", v)
}
