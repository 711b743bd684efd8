package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores records in Redis, one string value per key.
type RedisKV struct {
	Client *redis.Client
	Ctx    context.Context
}

// NewRedisKV wraps an already-connected Redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{
		Client: client,
		Ctx:    context.Background(),
	}
}

func (r *RedisKV) Get(key string) ([]byte, bool, error) {
	raw, err := r.Client.Get(r.Ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (r *RedisKV) Put(key string, value []byte) error {
	return r.Client.Set(r.Ctx, key, value, 0).Err()
}

func (r *RedisKV) Delete(key string) error {
	return r.Client.Del(r.Ctx, key).Err()
}
