package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for RedisStore.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	client *redis.Client
	opts   Options
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, opts Options) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		redisOpts.Password = cfg.Password
	}
	if cfg.DB >= 0 {
		redisOpts.DB = cfg.DB
	}

	redisOpts.DialTimeout = 5 * time.Second
	redisOpts.ReadTimeout = 3 * time.Second
	redisOpts.WriteTimeout = 3 * time.Second
	redisOpts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, opts: opts}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, s.opts.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	} else if err != nil {
		return "", unavailable("get", key, err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.opts.key(key), value, ttl).Err(); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.client.Del(ctx, s.opts.key(key)).Err(); err != nil {
		return unavailable("delete", key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
