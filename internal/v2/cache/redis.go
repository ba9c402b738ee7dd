package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/golang/glog"
)

const DefaultRedisPrefix = "glassfy:"

// RedisStore shares the keys between processes of the same host app
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
	prefix string
}

func NewRedisStore(host, port, password string, db int, prefix string) (*RedisStore, error) {
	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	glog.Infof("Connected to Redis at %s", addr)

	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: rdb, ctx: ctx, prefix: prefix}, nil
}

func (r *RedisStore) Get(key string) (string, error) {
	val, err := r.client.Get(r.ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

// Set stores value without expiration
func (r *RedisStore) Set(key, value string) error {
	return r.client.Set(r.ctx, r.prefix+key, value, 0).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
