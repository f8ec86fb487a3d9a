package concurrency

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var acquireScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', key) or '0')
if current < limit then
  current = redis.call('INCR', key)
  if ttl > 0 then
    redis.call('PEXPIRE', key, ttl)
  end
  return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
local key = KEYS[1]
local current = tonumber(redis.call('GET', key) or '0')
if current <= 1 then
  redis.call('DEL', key)
  return 0
end
return redis.call('DECR', key)
`)

// Limiter caps how many campaign runs may use one messaging account at a
// time. Slots expire after ttl so a crashed worker cannot hold one forever.
type Limiter struct {
	client       *redis.Client
	defaultLimit int
	ttl          time.Duration
}

// NewLimiter constructs a concurrency limiter.
func NewLimiter(client *redis.Client, defaultLimit int, ttl time.Duration) *Limiter {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if defaultLimit <= 0 {
		defaultLimit = 1
	}
	return &Limiter{client: client, defaultLimit: defaultLimit, ttl: ttl}
}

// Acquire attempts to reserve a slot for the account.
func (l *Limiter) Acquire(ctx context.Context, account string, limit int) (bool, error) {
	if account == "" {
		return true, nil
	}
	if limit <= 0 {
		limit = l.defaultLimit
	}

	res, err := acquireScript.Run(ctx, l.client, []string{l.key(account)}, limit, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("concurrency acquire: %w", err)
	}
	return res == 1, nil
}

// Extend pushes the slot expiry forward while a long run is still going.
func (l *Limiter) Extend(ctx context.Context, account string) error {
	if account == "" {
		return nil
	}
	if err := l.client.PExpire(ctx, l.key(account), l.ttl).Err(); err != nil {
		return fmt.Errorf("concurrency extend: %w", err)
	}
	return nil
}

// Release frees a previously acquired slot.
func (l *Limiter) Release(ctx context.Context, account string) error {
	if account == "" {
		return nil
	}
	if _, err := releaseScript.Run(ctx, l.client, []string{l.key(account)}).Int(); err != nil {
		return fmt.Errorf("concurrency release: %w", err)
	}
	return nil
}

func (l *Limiter) key(account string) string {
	return fmt.Sprintf("crm:account:%s:active_runs", account)
}
