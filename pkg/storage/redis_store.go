package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/utils"
)

const redisKeyPrefix = "img-relay:img:"

// RedisStore implements BlobStore on Redis. Entries carry no TTL.
type RedisStore struct {
	client *redis.Client
	log    *logrus.Entry
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client, log *logrus.Entry) *RedisStore {
	return &RedisStore{client: client, log: log}
}

// NewRedisStoreFromURL parses a redis:// URL, connects and pings the server
func NewRedisStoreFromURL(ctx context.Context, url string, log *logrus.Entry) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis url: %w", utils.ErrConfigValidation, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis ping %s: %w", utils.ErrDatabase, opts.Addr, err)
	}
	log.Infof("Image cache redis: %s db=%d", opts.Addr, opts.DB)
	return NewRedisStore(client, log), nil
}

// Exists implements BlobStore
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %w", utils.ErrDatabase, key, err)
	}
	return n > 0, nil
}

// Get implements BlobStore
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", utils.ErrCacheMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", utils.ErrDatabase, key, err)
	}
	return data, nil
}

// Put implements BlobStore
func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %w", utils.ErrDatabase, key, err)
	}
	return nil
}

// Close implements BlobStore
func (s *RedisStore) Close() error {
	return s.client.Close()
}
