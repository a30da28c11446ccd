package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps backend failures so the orchestrator can
// translate them without inspecting redis error strings.
var ErrStoreUnavailable = errors.New("context store unavailable")

// Store persists per-user conversation contexts in Redis with a TTL.
// Expiry is handled natively by Redis: Load never returns expired state,
// and Save always resets the expiry clock.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStore creates a context store expiring entries after ttlSec seconds.
func NewStore(client redis.Cmdable, ttlSec int) *Store {
	return &Store{client: client, ttl: time.Duration(ttlSec) * time.Second}
}

func contextKey(userID string) string {
	return "context:" + userID
}

// Load returns the user's unexpired context, or nil if none exists.
func (s *Store) Load(ctx context.Context, userID string) (*Context, error) {
	data, err := s.client.Get(ctx, contextKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", ErrStoreUnavailable, userID, err)
	}

	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		// Unreadable state is treated as absent so the user restarts
		// onboarding instead of being stuck.
		return nil, nil
	}
	return &c, nil
}

// Save writes the context and resets its TTL. Concurrent saves for the same
// user are last-write-wins; turns for one user are serialized upstream.
func (s *Store) Save(ctx context.Context, c *Context) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling context for %s: %w", c.UserID, err)
	}
	if err := s.client.Set(ctx, contextKey(c.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: saving %s: %v", ErrStoreUnavailable, c.UserID, err)
	}
	return nil
}

// Clear deletes the user's context.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, contextKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: clearing %s: %v", ErrStoreUnavailable, userID, err)
	}
	return nil
}
