package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLastSeen stores per-user heartbeat timestamps in a Redis hash so any
// instance can answer "when was this user last alive".
type RedisLastSeen struct {
	client *redis.Client
	key    string
}

func NewRedisLastSeen(addr, password, key string) *RedisLastSeen {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisLastSeen{client: c, key: key}
}

func (r *RedisLastSeen) Touch(ctx context.Context, userID string, at time.Time) error {
	return r.client.HSet(ctx, r.key, userID, at.UTC().Format(time.RFC3339)).Err()
}

// Get returns the last heartbeat time for a user, or ok=false when the user
// has never been seen.
func (r *RedisLastSeen) Get(ctx context.Context, userID string) (time.Time, bool, error) {
	v, err := r.client.HGet(ctx, r.key, userID).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (r *RedisLastSeen) Close() error { return r.client.Close() }
