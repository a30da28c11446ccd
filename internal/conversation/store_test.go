package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, ttlSec int) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, ttlSec), mr
}

func TestStore_SaveAndLoad(t *testing.T) {
	store, _ := setupStore(t, 1800)
	ctx := context.Background()

	c := New("+923001234567")
	c.State = StateActive
	c.Language = LanguageEnglish
	c.Mode = ModeText
	c.AppendTurn("user", "Which doctors are available?", 6)
	c.AppendTurn("assistant", "Dr. Ayesha Khan is available today.", 6)

	require.NoError(t, store.Save(ctx, c))

	loaded, err := store.Load(ctx, "+923001234567")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StateActive, loaded.State)
	assert.Equal(t, LanguageEnglish, loaded.Language)
	assert.Equal(t, ModeText, loaded.Mode)
	require.Len(t, loaded.History, 2)
	assert.Equal(t, "user", loaded.History[0].Role)
	assert.Equal(t, "Which doctors are available?", loaded.History[0].Content)
}

func TestStore_LoadMissingReturnsNil(t *testing.T) {
	store, _ := setupStore(t, 1800)

	loaded, err := store.Load(context.Background(), "+920000000000")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_ExpiredIsIndistinguishableFromMissing(t *testing.T) {
	store, mr := setupStore(t, 60)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, New("+923001234567")))

	mr.FastForward(61 * time.Second)

	loaded, err := store.Load(ctx, "+923001234567")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_SaveResetsTTL(t *testing.T) {
	store, mr := setupStore(t, 60)
	ctx := context.Background()

	c := New("+923001234567")
	require.NoError(t, store.Save(ctx, c))

	mr.FastForward(40 * time.Second)
	require.NoError(t, store.Save(ctx, c))

	// 40s + 40s exceeds the original window but not the refreshed one.
	mr.FastForward(40 * time.Second)

	loaded, err := store.Load(ctx, "+923001234567")
	require.NoError(t, err)
	assert.NotNil(t, loaded)
}

func TestStore_Clear(t *testing.T) {
	store, _ := setupStore(t, 1800)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, New("+923001234567")))
	require.NoError(t, store.Clear(ctx, "+923001234567"))

	loaded, err := store.Load(ctx, "+923001234567")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_UnavailableBackend(t *testing.T) {
	store, mr := setupStore(t, 1800)
	mr.Close()

	_, err := store.Load(context.Background(), "+923001234567")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
