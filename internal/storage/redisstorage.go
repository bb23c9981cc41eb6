package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"TrinoEventPump/internal/config"
)

const redisTimeout = 5 * time.Second

// RedisStore хранит смещения в хеше: поле — путь файла, значение — смещение.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(cfg *config.RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: rdb, key: cfg.Key}, nil
}

func (r *RedisStore) Load() (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	processed := make(map[string]int64, len(fields))
	for path, raw := range fields {
		off, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		processed[path] = off
	}
	return processed, nil
}

func (r *RedisStore) Save(data map[string]int64) error {
	if len(data) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	values := make(map[string]any, len(data))
	for path, off := range data {
		values[path] = off
	}
	if err := r.client.HSet(ctx, r.key, values).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
