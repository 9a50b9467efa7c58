// Package relay wires resolution, caching, fetching and compression into the
// operations exposed to callers: the HTTP server, the MCP tools and the CLI.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/cache"
	"github.com/Sriram-PR/img-relay/pkg/compress"
	"github.com/Sriram-PR/img-relay/pkg/config"
	"github.com/Sriram-PR/img-relay/pkg/extract"
	"github.com/Sriram-PR/img-relay/pkg/fetch"
	applog "github.com/Sriram-PR/img-relay/pkg/log"
	"github.com/Sriram-PR/img-relay/pkg/metrics"
	"github.com/Sriram-PR/img-relay/pkg/models"
	"github.com/Sriram-PR/img-relay/pkg/resolve"
	"github.com/Sriram-PR/img-relay/pkg/storage"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

// hostEvictionInterval is how often idle per-host page semaphores are dropped
const hostEvictionInterval = 5 * time.Minute

// Service is the assembled image relay. Create with New, release with Close.
type Service struct {
	cfg      *config.AppConfig
	resolver *resolve.Resolver
	cache    *cache.Cache
	store    storage.BlobStore
	log      *logrus.Entry
	cancel   context.CancelFunc
}

// New builds every component from cfg, which must already be validated.
// Background maintenance (Badger GC, host semaphore eviction) runs until
// Close or until ctx is cancelled.
func New(ctx context.Context, cfg *config.AppConfig, logger *logrus.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", utils.ErrConfigValidation)
	}
	bgCtx, cancel := context.WithCancel(ctx)

	client := fetch.NewClient(cfg.HTTPClientSettings, logger)
	pool := fetch.NewHostSemaphorePool(cfg.Resolver.MaxRequestsPerHost, applog.Component(logger, "host_semaphore"))
	pages := fetch.NewPageFetcher(client, pool, cfg.Resolver.MaxPageBytes, applog.Component(logger, "pages"))

	registry := extract.NewDefaultRegistry(pages, applog.Component(logger, "extract"))
	generic := extract.NewGenericExtractor(pages, applog.Component(logger, "extract"))
	resolver := resolve.New(registry, generic, cfg.Resolver.Timeout, applog.Component(logger, "resolver"))

	fetcher := fetch.NewFetcher(client, cfg.Fetcher.MaxImageSizeBytes, cfg.Fetcher.UserAgent, applog.Component(logger, "fetcher"))

	store, err := storage.Open(bgCtx, cfg.Cache, applog.Component(logger, "storage"))
	if err != nil {
		cancel()
		return nil, err
	}
	if gc, ok := store.(storage.GarbageCollector); ok {
		go gc.RunGC(bgCtx, cfg.Cache.GCInterval)
	}
	go pool.RunEviction(bgCtx, hostEvictionInterval)

	s := &Service{
		cfg:      cfg,
		resolver: resolver,
		cache:    cache.New(store, resolver, timeoutFetcher{fetcher: fetcher, timeout: cfg.Fetcher.Timeout}, applog.Component(logger, "cache")),
		store:    store,
		log:      applog.Component(logger, "relay"),
		cancel:   cancel,
	}
	s.log.WithFields(logrus.Fields{
		"cache_backend":  cfg.Cache.Backend,
		"extreme_bytes":  cfg.Compression.ExtremeTargetBytes,
		"standard_bytes": cfg.Compression.StandardTargetBytes,
	}).Info("Image relay ready")
	return s, nil
}

// Close stops background work and releases the cache store.
func (s *Service) Close() error {
	s.cancel()
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// Resolve reports how reference resolves without fetching it.
func (s *Service) Resolve(ctx context.Context, reference string) models.Resolution {
	return s.resolver.ResolveDetailed(ctx, reference)
}

// ResolveAndFetch returns the image bytes for reference, from the cache when
// possible. Cache failures never surface; fetch failures wrap utils.ErrFetchFailure.
func (s *Service) ResolveAndFetch(ctx context.Context, reference string) (*models.Image, error) {
	return s.cache.GetOrFetch(ctx, reference)
}

// Compress re-encodes an uploaded image under the variant's configured budget.
func (s *Service) Compress(data []byte, variant models.Variant) (*models.EncodedImage, error) {
	if limit := s.cfg.Compression.MaxUploadBytes; limit > 0 && int64(len(data)) > limit {
		metrics.RecordCompression(variant.String(), utils.CategorizeError(utils.ErrInputTooLarge), 0)
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", utils.ErrInputTooLarge, len(data), limit)
	}
	return s.compress(data, variant)
}

// CompressBase64 is Compress returning the standard base64 of the JPEG.
func (s *Service) CompressBase64(data []byte, variant models.Variant) (string, error) {
	enc, err := s.Compress(data, variant)
	if err != nil {
		return "", err
	}
	return enc.Base64(), nil
}

// FetchAndCompress fetches reference through the cache and compresses it.
// Fetched images are bounded by the fetcher's size cap, not the upload cap.
func (s *Service) FetchAndCompress(ctx context.Context, reference string, variant models.Variant) (*models.EncodedImage, error) {
	img, err := s.ResolveAndFetch(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.compress(img.Data, variant)
}

func (s *Service) compress(data []byte, variant models.Variant) (*models.EncodedImage, error) {
	budget, err := s.cfg.BudgetFor(variant)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	enc, err := compress.Compress(data, budget)
	entry := s.log.WithFields(logrus.Fields{
		"variant":      variant,
		"input_bytes":  len(data),
		"target_bytes": budget.TargetBytes,
		"duration":     time.Since(start),
	})
	if err != nil {
		category := utils.CategorizeError(err)
		metrics.RecordCompression(variant.String(), category, 0)
		entry.WithField("category", category).Warnf("Compression failed: %v", err)
		return nil, err
	}

	outcome := "ok"
	if !enc.WithinBudget() {
		outcome = "floor"
	}
	metrics.RecordCompression(variant.String(), outcome, enc.Size())
	entry.WithFields(logrus.Fields{
		"output_bytes": enc.Size(),
		"width":        enc.Width,
		"height":       enc.Height,
		"quality":      enc.Quality,
	}).Debug("Compressed image")
	return enc, nil
}

// IsClientError reports whether err was caused by the caller's input rather
// than by an upstream host or this service.
func IsClientError(err error) bool {
	return errors.Is(err, utils.ErrEmptyReference) ||
		errors.Is(err, utils.ErrUnknownVariant) ||
		errors.Is(err, utils.ErrInputTooLarge) ||
		errors.Is(err, utils.ErrDecodeFailure) ||
		errors.Is(err, utils.ErrEncodeFailure) ||
		errors.Is(err, utils.ErrCompressionOverBudget)
}

// ParseVariant accepts a user supplied variant name, defaulting to standard.
func ParseVariant(s string) (models.Variant, error) {
	v, err := models.ParseVariant(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", utils.ErrUnknownVariant, strings.TrimSpace(s))
	}
	return v, nil
}

// timeoutFetcher bounds the final byte fetch independently of resolution.
type timeoutFetcher struct {
	fetcher cache.Fetcher
	timeout time.Duration
}

func (t timeoutFetcher) Fetch(ctx context.Context, rawURL string) (*models.Image, error) {
	if t.timeout <= 0 {
		return t.fetcher.Fetch(ctx, rawURL)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.fetcher.Fetch(ctx, rawURL)
}
