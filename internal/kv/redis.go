package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisStore keeps values in Redis so several front ends share one standby
// collection.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to the Redis server at url (redis://[:pass@]host:port/db).
func NewRedis(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "kv: parse redis url")
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolSize = 10
	return NewRedisFromClient(redis.NewClient(opts)), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return eris.Wrap(r.client.Ping(ctx).Err(), "kv: redis ping")
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "kv: redis get %s", key)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return eris.Wrapf(r.client.Set(ctx, key, value, 0).Err(), "kv: redis set %s", key)
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return eris.Wrapf(r.client.Del(ctx, key).Err(), "kv: redis del %s", key)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
