package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// keyPrefix namespaces every key this service writes.
const keyPrefix = "routerd:cache:"

// RedisStore is a Store backed by a redis server. Every operation is best
// effort: connection or command errors are logged at debug level and
// reported as a miss, never returned to the caller.
type RedisStore struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedis connects to the given address and verifies the connection with a
// ping. A failed ping is logged but not fatal; the store simply misses until
// the server comes back.
func NewRedis(addr string, log zerolog.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("redis unreachable, cache degrades to miss")
	} else {
		log.Info().Str("addr", addr).Msg("redis cache connected")
	}
	return &RedisStore{client: client, log: log}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.Debug().Err(err).Str("key", key).Msg("cache get failed")
		}
		return "", false
	}
	return v, true
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := r.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		r.log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (r *RedisStore) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		r.log.Debug().Err(err).Str("key", key).Msg("cache delete failed")
	}
}

func (r *RedisStore) Close() error { return r.client.Close() }
