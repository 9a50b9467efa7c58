package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache backend names accepted by CacheConfig.Backend
const (
	CacheBackendFile   = "file"
	CacheBackendBadger = "badger"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// AppConfig holds the global application configuration
type AppConfig struct {
	LogLevel           string            `yaml:"log_level,omitempty"`
	LogFormat          string            `yaml:"log_format,omitempty"` // "text" or "json"
	Server             ServerConfig      `yaml:"server,omitempty"`
	Resolver           ResolverConfig    `yaml:"resolver,omitempty"`
	Fetcher            FetcherConfig     `yaml:"fetcher,omitempty"`
	Cache              CacheConfig       `yaml:"cache,omitempty"`
	Compression        CompressionConfig `yaml:"compression,omitempty"`
	HTTPClientSettings HTTPClientConfig  `yaml:"http_client_settings,omitempty"`
}

// ServerConfig holds settings for the HTTP surface
type ServerConfig struct {
	Addr           string        `yaml:"addr,omitempty"`
	ReadTimeout    time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout   time.Duration `yaml:"write_timeout,omitempty"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps,omitempty"`   // Per client IP; 0 disables limiting
	RateLimitBurst int           `yaml:"rate_limit_burst,omitempty"` // Per client IP
}

// ResolverConfig holds settings for platform page scraping
type ResolverConfig struct {
	Timeout            time.Duration `yaml:"timeout,omitempty"`               // Per network step, independent of other steps
	MaxPageBytes       int64         `yaml:"max_page_bytes,omitempty"`        // Body cap for scraped pages
	MaxRequestsPerHost int           `yaml:"max_requests_per_host,omitempty"` // Concurrent page fetches per platform host
}

// FetcherConfig holds settings for the final image byte fetch
type FetcherConfig struct {
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	MaxImageSizeBytes int64         `yaml:"max_image_size_bytes,omitempty"`
	UserAgent         string        `yaml:"user_agent,omitempty"`
}

// CacheConfig selects and configures the cache storage medium
type CacheConfig struct {
	Backend    string        `yaml:"backend,omitempty"` // file, badger, redis or none
	Dir        string        `yaml:"dir,omitempty"`     // Used by file and badger backends
	RedisURL   string        `yaml:"redis_url,omitempty"`
	GCInterval time.Duration `yaml:"gc_interval,omitempty"` // Badger value log GC
}

// CompressionConfig holds the byte targets of both compression policies
type CompressionConfig struct {
	ExtremeTargetBytes  int   `yaml:"extreme_target_bytes,omitempty"`
	StandardTargetBytes int   `yaml:"standard_target_bytes,omitempty"`
	MaxUploadBytes      int64 `yaml:"max_upload_bytes,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`
}

// Load reads and parses a YAML config file. A missing file yields a zero
// config when allowMissing is set, so the CLI runs on defaults alone.
func Load(path string, allowMissing bool) (*AppConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
