// Package metrics provides Prometheus metrics for img-relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal counts resolutions by platform and the stage that produced the result.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgrelay",
			Name:      "resolutions_total",
			Help:      "Total number of reference resolutions",
		},
		[]string{"platform", "stage"},
	)

	// CacheLookupsTotal counts cache lookups by result (hit, miss, error, disabled).
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgrelay",
			Name:      "cache_lookups_total",
			Help:      "Total number of cache lookups",
		},
		[]string{"result"},
	)

	// CacheWriteErrorsTotal counts swallowed cache write failures.
	CacheWriteErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imgrelay",
			Name:      "cache_write_errors_total",
			Help:      "Total number of failed cache writes",
		},
	)

	// FetchesTotal counts image fetches by outcome category.
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgrelay",
			Name:      "fetches_total",
			Help:      "Total number of image fetches",
		},
		[]string{"status"},
	)

	// CompressionsTotal counts compressions by variant and outcome.
	CompressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgrelay",
			Name:      "compressions_total",
			Help:      "Total number of compressions",
		},
		[]string{"variant", "outcome"},
	)

	// CompressedBytes observes encoded output sizes.
	CompressedBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgrelay",
			Name:      "compressed_bytes",
			Help:      "Distribution of compressed output sizes in bytes",
			Buckets:   []float64{512, 1024, 2048, 3072, 8192, 32768, 65536, 102400, 262144},
		},
		[]string{"variant"},
	)
)

// RecordResolution records a finished resolution.
func RecordResolution(platform, stage string) {
	ResolutionsTotal.WithLabelValues(platform, stage).Inc()
}

// RecordCacheLookup records a cache lookup result.
func RecordCacheLookup(result string) {
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordCacheWriteError records a swallowed cache write failure.
func RecordCacheWriteError() {
	CacheWriteErrorsTotal.Inc()
}

// RecordFetch records an image fetch; status is "ok" or an error category.
func RecordFetch(status string) {
	FetchesTotal.WithLabelValues(status).Inc()
}

// RecordCompression records a compression outcome and, for produced output, its size.
func RecordCompression(variant, outcome string, size int) {
	CompressionsTotal.WithLabelValues(variant, outcome).Inc()
	if size > 0 {
		CompressedBytes.WithLabelValues(variant).Observe(float64(size))
	}
}
