// Package resolve turns user-supplied image references into fetchable image URLs.
package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/extract"
	"github.com/Sriram-PR/img-relay/pkg/match"
	"github.com/Sriram-PR/img-relay/pkg/metrics"
	"github.com/Sriram-PR/img-relay/pkg/models"
)

// Resolution stages recorded on models.Resolution.Stage
const (
	StageEmpty       = "empty"
	StagePassThrough = "passthrough"
	StagePlatform    = "platform"
	StageGeneric     = "generic"
	StageIdentity    = "identity"
)

// DefaultStepTimeout bounds each network-touching extraction step
const DefaultStepTimeout = 10 * time.Second

// Resolver runs matcher, platform chain, generic fallback and identity
// fallback, stopping at the first success.
type Resolver struct {
	registry *extract.Registry
	generic  extract.Extractor
	timeout  time.Duration
	log      *logrus.Entry
}

// New creates a Resolver. generic may be nil to skip the fallback scrape.
func New(registry *extract.Registry, generic extract.Extractor, stepTimeout time.Duration, log *logrus.Entry) *Resolver {
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	return &Resolver{
		registry: registry,
		generic:  generic,
		timeout:  stepTimeout,
		log:      log,
	}
}

// Resolve returns a direct image URL for reference, or reference itself
// (trimmed) when nothing better is found. Blank input yields "".
func (r *Resolver) Resolve(ctx context.Context, reference string) string {
	return r.ResolveDetailed(ctx, reference).Resolved
}

// ResolveDetailed is Resolve with classification and stage information.
func (r *Resolver) ResolveDetailed(ctx context.Context, reference string) models.Resolution {
	res := r.resolve(ctx, reference)
	metrics.RecordResolution(res.Platform.String(), res.Stage)
	r.log.WithFields(logrus.Fields{
		"reference": res.Original,
		"resolved":  res.Resolved,
		"kind":      res.Kind.String(),
		"platform":  res.Platform.String(),
		"stage":     res.Stage,
	}).Debug("Resolved reference")
	return res
}

func (r *Resolver) resolve(ctx context.Context, reference string) models.Resolution {
	ref := strings.TrimSpace(reference)
	res := models.Resolution{Original: ref}
	if ref == "" {
		res.Kind = models.KindUnknown
		res.Stage = StageEmpty
		return res
	}

	c := match.Classify(ref)
	res.Kind = c.Kind
	res.Platform = c.Platform

	if c.Kind.PassThrough() {
		res.Resolved = ref
		res.Stage = StagePassThrough
		return res
	}

	if c.Kind == models.KindPlatformPage && r.registry != nil {
		for _, e := range r.registry.Chain(c.Platform) {
			if found, ok := r.try(ctx, e, ref); ok {
				res.Resolved = found
				res.Stage = StagePlatform
				return res
			}
		}
	}

	if r.generic != nil {
		if found, ok := r.try(ctx, r.generic, ref); ok {
			res.Resolved = found
			res.Stage = StageGeneric
			return res
		}
	}

	res.Resolved = ref
	res.Stage = StageIdentity
	return res
}

// try runs one extractor under its own deadline. A cancelled parent
// context still lets the pipeline fall through to identity.
func (r *Resolver) try(ctx context.Context, e extract.Extractor, ref string) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return e.TryExtract(stepCtx, ref)
}
