package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/itsmkit/glpi-dashboard/internal/logger"
)

// staleRetention bounds how long an expired entry stays available for
// stale reads before Redis evicts it physically.
const staleRetention = 6 * time.Hour

// envelope wraps a stored value with its write time so freshness is judged
// client-side; the Redis key itself lives past the logical TTL.
type envelope struct {
	StoredAt time.Time `json:"stored_at"`
	TTL      int64     `json:"ttl_ms"`
	Value    []byte    `json:"value"`
}

// Redis is a Store backed by a shared Redis instance, letting multiple
// replicas serve from one cache. Connection failures degrade to misses.
type Redis struct {
	client *redis.Client
	log    logger.Logger
}

// NewRedis builds a store around an existing client.
func NewRedis(client *redis.Client, log logger.Logger) *Redis {
	return &Redis{client: client, log: log}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	value, fresh, ok := r.GetStale(ctx, key)
	if !ok || !fresh {
		return nil, false
	}
	return value, true
}

func (r *Redis) GetStale(ctx context.Context, key string) ([]byte, bool, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, false
	}
	if err != nil {
		r.log.Warn("redis read failed, treating as miss",
			logger.String("key", key), logger.Error(err))
		return nil, false, false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.log.Warn("corrupt cache entry dropped", logger.String("key", key))
		return nil, false, false
	}

	fresh := time.Since(env.StoredAt) < time.Duration(env.TTL)*time.Millisecond
	return env.Value, fresh, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	raw, err := json.Marshal(envelope{
		StoredAt: time.Now(),
		TTL:      ttl.Milliseconds(),
		Value:    value,
	})
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, raw, ttl+staleRetention).Err(); err != nil {
		r.log.Warn("redis write failed", logger.String("key", key), logger.Error(err))
	}
}
