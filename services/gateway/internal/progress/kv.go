// Package progress persists the last known playback position per title.
//
// Primary backend: Redis (env REDIS_URL).
// Fallback: Postgres table watch_progress (env DATABASE_URL).
// If neither is configured, an in-memory map is used (development only).
package progress

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// KV is the persistence surface: one opaque value per key, last write wins.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Backends carries the already-opened connections NewKV may choose from.
type Backends struct {
	Redis        *redis.Client
	Postgres     *pgxpool.Pool
	IsProduction bool
}

// NewKV picks the best available backend: Redis > Postgres > in-memory.
// In production the in-memory fallback is refused.
func NewKV(ctx context.Context, b Backends) (KV, error) {
	if b.Redis != nil {
		return NewRedisKV(b.Redis), nil
	}
	if b.Postgres != nil {
		kv := NewPostgresKV(b.Postgres)
		if err := kv.Migrate(ctx); err != nil {
			return nil, err
		}
		return kv, nil
	}
	if b.IsProduction {
		return nil, errors.New("production requires REDIS_URL or DATABASE_URL for watch progress; in-memory store is not allowed")
	}
	return NewMemoryKV(), nil
}
