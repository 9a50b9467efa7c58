// Package cache is the read-through, content-addressable image cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/metrics"
	"github.com/Sriram-PR/img-relay/pkg/models"
	"github.com/Sriram-PR/img-relay/pkg/storage"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

// Resolver maps a reference to a fetchable URL
type Resolver interface {
	Resolve(ctx context.Context, reference string) string
}

// Fetcher retrieves image bytes from a resolved URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.Image, error)
}

// Key derives the cache key from the original, unresolved reference.
func Key(reference string) string {
	return utils.CalculateStringMD5(strings.TrimSpace(reference))
}

// Cache serves image bytes keyed by the reference the user supplied.
// Entries are never expired or refreshed.
type Cache struct {
	store    storage.BlobStore // nil disables caching
	resolver Resolver
	fetcher  Fetcher
	log      *logrus.Entry
}

// New creates a Cache. store may be nil.
func New(store storage.BlobStore, resolver Resolver, fetcher Fetcher, log *logrus.Entry) *Cache {
	return &Cache{store: store, resolver: resolver, fetcher: fetcher, log: log}
}

// GetOrFetch returns cached bytes for reference or resolves, fetches and
// stores them. Only fetch failures reach the caller; storage problems are
// logged and counted.
func (c *Cache) GetOrFetch(ctx context.Context, reference string) (*models.Image, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, utils.ErrEmptyReference
	}
	key := Key(ref)
	entryLog := c.log.WithFields(logrus.Fields{"reference": ref, "key": key})

	if img, ok := c.lookup(ctx, key, entryLog); ok {
		return img, nil
	}

	resolved := c.resolver.Resolve(ctx, ref)
	img, err := c.fetcher.Fetch(ctx, resolved)
	if err != nil {
		return nil, err
	}

	if werr := c.write(ctx, key, img.Data); werr != nil {
		metrics.RecordCacheWriteError()
		entryLog.WithField("category", utils.CategorizeError(werr)).Warnf("Cache write failed: %v", werr)
	}
	return img, nil
}

func (c *Cache) lookup(ctx context.Context, key string, entryLog *logrus.Entry) (*models.Image, bool) {
	if c.store == nil {
		metrics.RecordCacheLookup("disabled")
		return nil, false
	}
	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		metrics.RecordCacheLookup("hit")
		entryLog.Debug("Cache hit")
		return &models.Image{Data: data, ContentType: models.DefaultContentType, FromCache: true}, true
	case errors.Is(err, utils.ErrCacheMiss):
		metrics.RecordCacheLookup("miss")
	default:
		metrics.RecordCacheLookup("error")
		entryLog.Warnf("Cache read failed, treating as miss: %v", err)
	}
	return nil, false
}

func (c *Cache) write(ctx context.Context, key string, data []byte) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("%w: %w", utils.ErrCacheWrite, err)
	}
	return nil
}

// Contains reports whether reference has a cache entry
func (c *Cache) Contains(ctx context.Context, reference string) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	return c.store.Exists(ctx, Key(reference))
}
