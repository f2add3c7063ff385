// Package cache holds the per-session country → coordinate lookup cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/speedglobe/internal/config"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

// Store is a session cache the resolver reads and writes.
type Store interface {
	Get(ctx context.Context, key string) (model.Coordinate, bool, error)
	Set(ctx context.Context, key string, c model.Coordinate) error
	// Snapshot returns every cached entry.
	Snapshot(ctx context.Context) (map[string]model.Coordinate, error)
	Backend() string
	Close() error
}

// Open returns the backend named by cfg. Redis is pinged once so a bad
// address fails here instead of on every lookup.
func Open(ctx context.Context, cfg *config.Config, sessionID string) (Store, error) {
	switch cfg.CacheBackend {
	case config.CacheMemory, "":
		return NewMemory(), nil
	case config.CacheRedis:
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("%w: redis %s: %v", ErrUnavailable, cfg.RedisAddr, err)
		}
		ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
		return NewRedis(rc, SessionKey(cfg.CacheKey, sessionID), ttl), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.CacheBackend)
	}
}

// SessionKey scopes the fixed cache key to one session.
func SessionKey(cacheKey, sessionID string) string {
	if sessionID == "" {
		return cacheKey
	}
	return cacheKey + ":" + sessionID
}
