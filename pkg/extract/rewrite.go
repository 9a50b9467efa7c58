package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/Sriram-PR/img-relay/pkg/models"
)

// RewriteExtractor derives the CDN URL from the page URL alone.
type RewriteExtractor struct {
	platform models.Platform
	rewrite  func(pageURL string) (string, bool)
}

// Platform implements Extractor
func (e *RewriteExtractor) Platform() models.Platform { return e.platform }

// TryExtract implements Extractor. It performs no I/O.
func (e *RewriteExtractor) TryExtract(_ context.Context, pageURL string) (string, bool) {
	return e.rewrite(strings.TrimSpace(pageURL))
}

var (
	imgurPageRe = regexp.MustCompile(`^(?i:https?://)?(?i:(?:www\.|m\.)?imgur\.com)/(\w+)(?:\.\w+)?/?(?:[?#].*)?$`)

	giphyPageRe  = regexp.MustCompile(`(?i)giphy\.com/(?:gifs|stickers)/(?:[\w-]*-)?(\w+)`)
	giphyEmbedRe = regexp.MustCompile(`(?i)giphy\.com/embed/(\w+)`)
)

// Single-segment imgur paths that are site sections, not image ids.
var imgurReserved = map[string]bool{
	"a": true, "gallery": true, "t": true, "r": true, "user": true, "topic": true,
	"upload": true, "signin": true, "register": true, "search": true,
}

// NewImgurRewriter maps imgur.com/<id> to https://i.imgur.com/<id>.jpg.
// Albums and galleries fall through to the scraper.
func NewImgurRewriter() *RewriteExtractor {
	return &RewriteExtractor{
		platform: models.PlatformImgur,
		rewrite: func(pageURL string) (string, bool) {
			m := imgurPageRe.FindStringSubmatch(pageURL)
			if m == nil || imgurReserved[strings.ToLower(m[1])] {
				return "", false
			}
			return "https://i.imgur.com/" + m[1] + ".jpg", true
		},
	}
}

// NewGiphyRewriter maps giphy.com/gifs/<slug>-<id> and giphy.com/embed/<id>
// to https://media.giphy.com/media/<id>/giphy.gif.
func NewGiphyRewriter() *RewriteExtractor {
	return &RewriteExtractor{
		platform: models.PlatformGiphy,
		rewrite: func(pageURL string) (string, bool) {
			m := giphyPageRe.FindStringSubmatch(pageURL)
			if m == nil {
				m = giphyEmbedRe.FindStringSubmatch(pageURL)
			}
			if m == nil {
				return "", false
			}
			return "https://media.giphy.com/media/" + m[1] + "/giphy.gif", true
		},
	}
}
