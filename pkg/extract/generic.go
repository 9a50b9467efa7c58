package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/fetch"
	"github.com/Sriram-PR/img-relay/pkg/models"
)

// Meta selectors in priority order. Attribute selectors make the lookup
// independent of attribute order inside the tag.
var (
	ogSelectors = []string{
		`meta[property="og:image"]`,
		`meta[name="og:image"]`,
		`meta[property="og:image:url"]`,
		`meta[property="og:image:secure_url"]`,
	}
	twitterSelectors = []string{
		`meta[name="twitter:image"]`,
		`meta[property="twitter:image"]`,
		`meta[name="twitter:image:src"]`,
	}
)

// GenericExtractor is the last-resort strategy for any page: one GET with a
// desktop browser persona, then the page's open-graph image.
type GenericExtractor struct {
	pages PageGetter
	log   *logrus.Entry
}

// NewGenericExtractor creates a GenericExtractor
func NewGenericExtractor(pages PageGetter, log *logrus.Entry) *GenericExtractor {
	return &GenericExtractor{pages: pages, log: log.WithField("extractor", "generic")}
}

// Platform implements Extractor
func (e *GenericExtractor) Platform() models.Platform { return models.PlatformNone }

// TryExtract implements Extractor
func (e *GenericExtractor) TryExtract(ctx context.Context, pageURL string) (string, bool) {
	body, err := e.pages.GetPage(ctx, pageURL, fetch.BrowserPersona)
	if err != nil {
		e.log.WithField("url", pageURL).Debugf("Page fetch failed: %v", err)
		return "", false
	}
	found, source, ok := FindMetaImage(pageURL, body)
	if !ok {
		e.log.WithField("url", pageURL).Debug("No og:image found")
		return "", false
	}
	e.log.WithFields(logrus.Fields{"url": pageURL, "source": source, "found": found}).Debug("Extracted image URL")
	return found, true
}

// FindMetaImage looks for the page's preview image: og:image via the HTML
// parser, then the regex rules for markup the parser cannot make sense of,
// then twitter:image.
func FindMetaImage(pageURL, body string) (string, string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		if u, ok := firstMetaContent(doc, pageURL, ogSelectors); ok {
			return u, "goquery:og:image", true
		}
	}

	if u, name, ok := ApplyRules(pageURL, body, OpenGraphRules); ok {
		return u, name, true
	}

	if err == nil {
		if u, ok := firstMetaContent(doc, pageURL, twitterSelectors); ok {
			return u, "goquery:twitter:image", true
		}
	}
	if u, name, ok := ApplyRules(pageURL, body, []Rule{twitterImageFirst, twitterImageReversed}); ok {
		return u, name, true
	}
	return "", "", false
}

func firstMetaContent(doc *goquery.Document, pageURL string, selectors []string) (string, bool) {
	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			content, exists := s.Attr("content")
			if !exists {
				return true
			}
			if u, ok := Absolutize(pageURL, Unescape(content)); ok {
				found = u
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}
