package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"scorevc/internal/ratelimit/models"
)

// slidingWindow trims, counts and conditionally records in one round trip.
// Returns {allowed, count, oldest_ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
local allowed = 0
if count < limit then
  redis.call("ZADD", key, now, member)
  count = count + 1
  allowed = 1
end
redis.call("PEXPIRE", key, window)
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local oldestMs = now
if oldest[2] then
  oldestMs = tonumber(oldest[2])
end
return {allowed, count, oldestMs}
`)

// RedisStore shares sliding windows across replicas using one sorted set per key.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit models.Limit, now time.Time) (models.Result, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(now.UnixNano(), 36)
	vals, err := slidingWindow.Run(ctx, s.client, []string{key},
		nowMs, limit.Window.Milliseconds(), limit.Requests, member,
	).Int64Slice()
	if err != nil {
		return models.Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return models.Result{}, fmt.Errorf("rate limit script: unexpected reply length %d", len(vals))
	}

	resetAt := time.UnixMilli(vals[2]).Add(limit.Window)
	if vals[0] == 0 {
		return models.Result{
			Limit:      limit.Requests,
			ResetAt:    resetAt,
			RetryAfter: models.RetryAfterSeconds(now, resetAt),
		}, nil
	}
	return models.Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - int(vals[1]),
		ResetAt:   resetAt,
	}, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}
