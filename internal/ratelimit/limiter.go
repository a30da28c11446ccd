package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// admitScript increments the window counter and, when this call opens a new
// window, arms its expiry in the same atomic step. Returning the counter and
// the remaining window together means two concurrent admits for one user can
// never observe a half-reset window.
var admitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// Limiter is a fixed-window per-user message admission limiter backed by
// Redis. The window resets atomically on the first admit after expiry; there
// is no partial carry-over. Rejected messages are never queued or retried.
type Limiter struct {
	rdb    redis.Cmdable
	max    int
	window time.Duration
}

// NewLimiter allows max admissions per windowSec seconds for each user.
func NewLimiter(rdb redis.Cmdable, max, windowSec int) *Limiter {
	return &Limiter{
		rdb:    rdb,
		max:    max,
		window: time.Duration(windowSec) * time.Second,
	}
}

func rateKey(userID string) string {
	return "rate:" + userID
}

// Admit records one inbound message for userID and reports whether it may be
// processed. When rejected, RetryAfter is the time until the window resets.
func (l *Limiter) Admit(ctx context.Context, userID string) (Decision, error) {
	res, err := admitScript.Run(ctx, l.rdb, []string{rateKey(userID)}, l.window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limiter admit for %s: %w", userID, err)
	}

	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return Decision{}, fmt.Errorf("rate limiter admit for %s: unexpected reply %v", userID, res)
	}
	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)

	d := Decision{
		Allowed: count <= int64(l.max),
		Count:   int(count),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(ttlMs) * time.Millisecond
	}
	return d, nil
}
