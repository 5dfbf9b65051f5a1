package rooms

import (
	"context"
	"testing"

	"matchmaker/core/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *Store {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := setup(t)

	id, err := store.CreateRoom(ctx, "a", "b")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	for _, user := range []string{"a", "b"} {
		got, ok, err := store.FindOpenRoomFor(ctx, user)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, id, got)
	}

	_, ok, err := store.FindOpenRoomFor(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Close(ctx, id))
	assert.ErrorIs(t, store.Close(ctx, id), ErrRoomNotFound)

	_, ok, err = store.FindOpenRoomFor(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DeleteRoom(t *testing.T) {
	ctx := context.Background()
	store := setup(t)

	id, err := store.CreateRoom(ctx, "a", "b")
	require.NoError(t, err)
	require.NoError(t, store.DeleteRoom(ctx, id))
	require.NoError(t, store.DeleteRoom(ctx, id))

	_, ok, err := store.FindOpenRoomFor(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CreateRoomRejectsSelfPairing(t *testing.T) {
	_, err := setup(t).CreateRoom(context.Background(), "a", "a")
	assert.Error(t, err)
}
