package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, max, windowSec int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLimiter(client, max, windowSec), mr
}

func TestLimiter_AllowsExactlyMaxWithinWindow(t *testing.T) {
	l, _ := setupLimiter(t, 5, 60)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Admit(ctx, "+923001234567")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "admission %d", i+1)
	}

	d, err := l.Admit(ctx, "+923001234567")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, 60*time.Second)
}

func TestLimiter_WindowResetsAtomically(t *testing.T) {
	l, mr := setupLimiter(t, 2, 60)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Admit(ctx, "u1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.Admit(ctx, "u1")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	mr.FastForward(61 * time.Second)

	// A fresh window starts from a zero count, not a carried-over one.
	d, err = l.Admit(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestLimiter_UsersIndependent(t *testing.T) {
	l, _ := setupLimiter(t, 1, 60)
	ctx := context.Background()

	d, err := l.Admit(ctx, "u1")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Admit(ctx, "u1")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	d, err = l.Admit(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiter_BackendErrorSurfaces(t *testing.T) {
	l, mr := setupLimiter(t, 1, 60)
	mr.Close()

	_, err := l.Admit(context.Background(), "u1")
	require.Error(t, err)
}
