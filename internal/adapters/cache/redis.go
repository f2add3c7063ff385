package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// Client is the subset of the go-redis API the Redis store needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Redis keeps the whole session cache as one JSON object under a single key.
// Writes are read-modify-write under a local mutex, so one process never
// loses its own updates; the key expires after the session TTL.
type Redis struct {
	client Client
	key    string
	ttl    time.Duration
	mu     sync.Mutex
}

// NewRedis creates a Redis store over client.
func NewRedis(client Client, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, ttl: ttl}
}

// Key returns the redis key holding the session object.
func (r *Redis) Key() string { return r.key }

func (r *Redis) load(ctx context.Context) (map[string]model.Coordinate, error) {
	s, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return make(map[string]model.Coordinate), nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Coordinate)
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.key, err)
	}
	return out, nil
}

func (r *Redis) Get(ctx context.Context, key string) (model.Coordinate, bool, error) {
	entries, err := r.load(ctx)
	if err != nil {
		metrics.RecordCacheError(r.Backend(), "get")
		return model.Coordinate{}, false, err
	}
	c, ok := entries[key]
	return c, ok, nil
}

func (r *Redis) Set(ctx context.Context, key string, c model.Coordinate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		metrics.RecordCacheError(r.Backend(), "set")
		return err
	}
	entries[key] = c
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, string(b), r.ttl).Err(); err != nil {
		metrics.RecordCacheError(r.Backend(), "set")
		return err
	}
	return nil
}

func (r *Redis) Snapshot(ctx context.Context) (map[string]model.Coordinate, error) {
	return r.load(ctx)
}

func (r *Redis) Backend() string { return "redis" }

func (r *Redis) Close() error { return r.client.Close() }
