// Package extract turns platform page URLs into direct image URLs.
//
// Each supported platform owns an ordered chain of Extractors. Chains run
// network-free strategies (path rewrites, ID-based thumbnails) before
// strategies that scrape the page. Every failure mode (non-200 responses,
// timeouts, malformed markup, missing patterns) is reported as "no result"
// so the caller can fall through to the next strategy.
package extract

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/fetch"
	"github.com/Sriram-PR/img-relay/pkg/models"
)

// Extractor derives a direct image URL from a page URL
type Extractor interface {
	Platform() models.Platform
	TryExtract(ctx context.Context, pageURL string) (string, bool)
}

// PageGetter downloads a page body using a request persona
type PageGetter interface {
	GetPage(ctx context.Context, pageURL string, persona fetch.Persona) (string, error)
}

// Registry maps platforms to their extractor chains.
type Registry struct {
	mu     sync.RWMutex
	chains map[models.Platform][]Extractor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{chains: make(map[models.Platform][]Extractor)}
}

// Register appends e to the chain of e.Platform()
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[e.Platform()] = append(r.chains[e.Platform()], e)
}

// Chain returns the extractors for p in registration order
func (r *Registry) Chain(p models.Platform) []Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := r.chains[p]
	out := make([]Extractor, len(chain))
	copy(out, chain)
	return out
}

// NewDefaultRegistry registers the built-in chain of every supported platform.
func NewDefaultRegistry(pages PageGetter, log *logrus.Entry) *Registry {
	r := NewRegistry()

	r.Register(NewYouTubeExtractor())

	r.Register(NewGiphyRewriter())
	r.Register(NewImgurRewriter())

	for _, spec := range scrapeSpecs {
		r.Register(NewScrapeExtractor(spec, pages, log))
	}
	return r
}
