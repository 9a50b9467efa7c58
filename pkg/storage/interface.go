package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/config"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

// BlobStore is a flat key to bytes store. Keys are cache keys (hex digests).
// Get returns an error wrapping utils.ErrCacheMiss for absent keys.
// Put is last-write-wins; concurrent writers of one key need no coordination.
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Close() error
}

// GarbageCollector is implemented by stores that need periodic maintenance.
// RunGC blocks until ctx is done and should be run in a goroutine.
type GarbageCollector interface {
	RunGC(ctx context.Context, interval time.Duration)
}

// Open constructs the backend selected by cfg. Backend "none" returns a nil
// store, which the cache treats as disabled.
func Open(ctx context.Context, cfg config.CacheConfig, log *logrus.Entry) (BlobStore, error) {
	switch cfg.Backend {
	case config.CacheBackendFile, "":
		return NewFileStore(cfg.Dir, log)
	case config.CacheBackendBadger:
		return NewBadgerStore(ctx, cfg.Dir, log)
	case config.CacheBackendRedis:
		return NewRedisStoreFromURL(ctx, cfg.RedisURL, log)
	case config.CacheBackendNone:
		log.Info("Image cache disabled (backend: none)")
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown cache backend '%s'", utils.ErrConfigValidation, cfg.Backend)
}

// validKey rejects keys that could escape a directory or collide with
// internal prefixes. Cache keys are hex, so this only trips on misuse.
func validKey(key string) error {
	if key == "" || len(key) > 128 {
		return fmt.Errorf("invalid cache key length %d", len(key))
	}
	for _, r := range key {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		default:
			return fmt.Errorf("invalid character %q in cache key", r)
		}
	}
	return nil
}
