package config

import (
	"fmt"
	"time"

	"github.com/Sriram-PR/img-relay/pkg/models"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	} else if c.LogFormat != "text" && c.LogFormat != "json" {
		warnings = append(warnings, fmt.Sprintf("log_format '%s' unknown, defaulting to 'text'", c.LogFormat))
		c.LogFormat = "text"
	}

	warnings = append(warnings, c.validateServer()...)
	warnings = append(warnings, c.validateResolver()...)
	warnings = append(warnings, c.validateFetcher()...)
	warnings = append(warnings, c.validateCompression()...)

	cacheWarnings, cacheErr := c.validateCache()
	warnings = append(warnings, cacheWarnings...)
	if cacheErr != nil {
		return warnings, cacheErr
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

func (c *AppConfig) validateServer() (warnings []string) {
	s := &c.Server
	if s.Addr == "" {
		s.Addr = ":8080"
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = 60 * time.Second
	}
	if s.RateLimitRPS < 0 {
		warnings = append(warnings, "server.rate_limit_rps cannot be negative, disabling rate limiting")
		s.RateLimitRPS = 0
	}
	if s.RateLimitRPS > 0 && s.RateLimitBurst <= 0 {
		warnings = append(warnings, "server.rate_limit_burst should be > 0 when rate limiting is enabled, defaulting to 10")
		s.RateLimitBurst = 10
	}
	return warnings
}

func (c *AppConfig) validateResolver() (warnings []string) {
	r := &c.Resolver
	if r.Timeout <= 0 {
		r.Timeout = 10 * time.Second
	}
	if r.MaxPageBytes <= 0 {
		r.MaxPageBytes = 5 * 1024 * 1024
	}
	if r.MaxRequestsPerHost <= 0 {
		warnings = append(warnings, "resolver.max_requests_per_host should be > 0, defaulting to 4")
		r.MaxRequestsPerHost = 4
	}
	return warnings
}

func (c *AppConfig) validateFetcher() (warnings []string) {
	f := &c.Fetcher
	if f.Timeout <= 0 {
		f.Timeout = 15 * time.Second
	}
	if f.MaxImageSizeBytes < 0 {
		warnings = append(warnings, "fetcher.max_image_size_bytes cannot be negative, setting to 0 (unlimited)")
		f.MaxImageSizeBytes = 0
	} else if f.MaxImageSizeBytes == 0 {
		f.MaxImageSizeBytes = 20 * 1024 * 1024
	}
	return warnings
}

func (c *AppConfig) validateCompression() (warnings []string) {
	cc := &c.Compression
	if cc.ExtremeTargetBytes <= 0 {
		cc.ExtremeTargetBytes = models.ExtremeTargetBytes
	}
	if cc.StandardTargetBytes <= 0 {
		cc.StandardTargetBytes = models.StandardTargetBytes
	}
	if cc.ExtremeTargetBytes > cc.StandardTargetBytes {
		warnings = append(warnings, fmt.Sprintf(
			"compression.extreme_target_bytes (%d) > standard_target_bytes (%d), the extreme policy will be less aggressive",
			cc.ExtremeTargetBytes, cc.StandardTargetBytes))
	}
	if cc.MaxUploadBytes < 0 {
		warnings = append(warnings, "compression.max_upload_bytes cannot be negative, setting to 0 (unlimited)")
		cc.MaxUploadBytes = 0
	} else if cc.MaxUploadBytes == 0 {
		cc.MaxUploadBytes = 2 * 1024 * 1024
	}
	return warnings
}

func (c *AppConfig) validateCache() (warnings []string, err error) {
	cc := &c.Cache
	switch cc.Backend {
	case "":
		cc.Backend = CacheBackendFile
	case CacheBackendFile, CacheBackendBadger, CacheBackendNone:
	case CacheBackendRedis:
		if cc.RedisURL == "" {
			return warnings, fmt.Errorf("%w: cache.backend 'redis' needs cache.redis_url", utils.ErrConfigValidation)
		}
	default:
		return warnings, fmt.Errorf("%w: unknown cache.backend '%s' (supported: file, badger, redis, none)",
			utils.ErrConfigValidation, cc.Backend)
	}

	if (cc.Backend == CacheBackendFile || cc.Backend == CacheBackendBadger) && cc.Dir == "" {
		warnings = append(warnings, "cache.dir is empty, defaulting to './image_cache'")
		cc.Dir = "./image_cache"
	}
	if cc.GCInterval <= 0 {
		cc.GCInterval = 10 * time.Minute
	}
	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 30 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 4
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 10 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}

// ExtremeBudget returns the configured EXTREME budget
func (c *AppConfig) ExtremeBudget() models.Budget {
	return models.Budget{Variant: models.VariantExtreme, TargetBytes: c.Compression.ExtremeTargetBytes}
}

// StandardBudget returns the configured STANDARD budget
func (c *AppConfig) StandardBudget() models.Budget {
	return models.Budget{Variant: models.VariantStandard, TargetBytes: c.Compression.StandardTargetBytes}
}

// BudgetFor returns the configured budget for a variant
func (c *AppConfig) BudgetFor(v models.Variant) (models.Budget, error) {
	switch v {
	case models.VariantExtreme:
		return c.ExtremeBudget(), nil
	case models.VariantStandard:
		return c.StandardBudget(), nil
	}
	return models.Budget{}, fmt.Errorf("%w: %q", utils.ErrUnknownVariant, string(v))
}
