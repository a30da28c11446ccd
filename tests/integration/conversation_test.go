//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehatline/sehatline/internal/conversation"
	"github.com/sehatline/sehatline/internal/ratelimit"
)

func TestContextStore_RoundTripAndTTL(t *testing.T) {
	env := SetupTestEnv(t)
	store := conversation.NewStore(env.RedisClient, 2)
	ctx := context.Background()
	user := fmt.Sprintf("user-%d", time.Now().UnixNano())

	convo := conversation.New(user)
	convo.Advance(conversation.StateAwaitingLanguage)
	convo.Language = conversation.LanguageUrdu
	require.NoError(t, store.Save(ctx, convo))

	loaded, err := store.Load(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, conversation.StateAwaitingLanguage, loaded.State)
	assert.Equal(t, conversation.LanguageUrdu, loaded.Language)

	// Expired state reads as absent
	time.Sleep(2500 * time.Millisecond)
	loaded, err = store.Load(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRateLimiter_ConcurrentAdmitsNeverOverAdmit(t *testing.T) {
	env := SetupTestEnv(t)
	limiter := ratelimit.NewLimiter(env.RedisClient, 10, 60)
	user := fmt.Sprintf("user-%d", time.Now().UnixNano())

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Admit(context.Background(), user)
			if !assert.NoError(t, err) {
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed, "exactly the window maximum is admitted under contention")
}
