package extract

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/fetch"
	"github.com/Sriram-PR/img-relay/pkg/models"
)

// ScrapeSpec describes how to scrape one platform's pages.
type ScrapeSpec struct {
	Platform models.Platform
	Persona  fetch.Persona
	Rules    []Rule // tried in order after OpenGraphRules
}

// ScrapeExtractor fetches a platform page and applies ordered rules to the body.
type ScrapeExtractor struct {
	spec  ScrapeSpec
	rules []Rule
	pages PageGetter
	log   *logrus.Entry
}

// NewScrapeExtractor creates a ScrapeExtractor for spec
func NewScrapeExtractor(spec ScrapeSpec, pages PageGetter, log *logrus.Entry) *ScrapeExtractor {
	rules := make([]Rule, 0, len(OpenGraphRules)+len(spec.Rules))
	rules = append(rules, OpenGraphRules...)
	rules = append(rules, spec.Rules...)
	return &ScrapeExtractor{
		spec:  spec,
		rules: rules,
		pages: pages,
		log:   log.WithFields(logrus.Fields{"extractor": "scrape", "platform": spec.Platform.String()}),
	}
}

// Platform implements Extractor
func (e *ScrapeExtractor) Platform() models.Platform { return e.spec.Platform }

// TryExtract implements Extractor
func (e *ScrapeExtractor) TryExtract(ctx context.Context, pageURL string) (string, bool) {
	body, err := e.pages.GetPage(ctx, pageURL, e.spec.Persona)
	if err != nil {
		e.log.WithField("url", pageURL).Debugf("Page fetch failed: %v", err)
		return "", false
	}
	found, ruleName, ok := ApplyRules(pageURL, body, e.rules)
	if !ok {
		e.log.WithField("url", pageURL).Debug("No extraction rule matched")
		return "", false
	}
	e.log.WithFields(logrus.Fields{"url": pageURL, "rule": ruleName, "found": found}).Debug("Extracted image URL")
	return found, true
}

var (
	instagramRules = []Rule{
		jsonField("display_url"),
		jsonField("thumbnail_src"),
		rule("json:src-jpg", `"src"\s*:\s*"(https:[^"]+?\.jpg[^"]*)"`),
		cdnFragment("cdninstagram", `[a-z0-9.-]*cdninstagram\.com`),
	}
	tiktokRules = []Rule{
		jsonField("originCover"),
		jsonField("cover"),
		jsonField("dynamicCover"),
		cdnFragment("tiktokcdn", `[a-z0-9.-]*tiktokcdn(?:-us)?\.com`),
	}
	pinterestRules = []Rule{
		rule("json:orig.url", `"orig"\s*:\s*\{[^{}]*?"url"\s*:\s*"((?:[^"\\]|\\.)+)"`),
		cdnFragment("pinimg-originals", `i\.pinimg\.com\\?/originals`),
		cdnFragment("pinimg", `i\.pinimg\.com`),
	}
	redditRules = []Rule{
		rule("json:url-i.redd.it", `"url"\s*:\s*"(https:(?:\\?/){2}i\.redd\.it(?:\\?/)[^"]+)"`),
		cdnFragment("i.redd.it", `i\.redd\.it`),
		cdnFragment("preview.redd.it", `preview\.redd\.it`),
	}
	twitterRules = []Rule{
		twitterImageFirst,
		twitterImageReversed,
		cdnFragment("twimg", `pbs\.twimg\.com`),
	}
	facebookRules = []Rule{
		cdnFragment("fbcdn", `[a-z0-9.-]*fbcdn\.net`),
	}
	tumblrRules = []Rule{
		cdnFragment("tumblr", `[a-z0-9.-]*media\.tumblr\.com`),
	}
	flickrRules = []Rule{
		cdnFragment("staticflickr", `live\.staticflickr\.com`),
	}
	vimeoRules = []Rule{
		jsonField("thumbnail_url"),
		cdnFragment("vimeocdn", `i\.vimeocdn\.com`),
	}
	tenorRules = []Rule{
		cdnFragment("tenor", `media[0-9]*\.tenor\.com`),
	}
	imgurAlbumRules = []Rule{
		cdnFragment("i.imgur.com", `i\.imgur\.com`),
	}
	giphyRules = []Rule{
		cdnFragment("media.giphy.com", `media[0-9]*\.giphy\.com`),
	}
)

// scrapeSpecs is registered after each platform's network-free extractors.
var scrapeSpecs = []ScrapeSpec{
	{Platform: models.PlatformGiphy, Persona: fetch.BrowserPersona, Rules: giphyRules},
	{Platform: models.PlatformImgur, Persona: fetch.BrowserPersona, Rules: imgurAlbumRules},
	{Platform: models.PlatformInstagram, Persona: fetch.NavigationPersona, Rules: instagramRules},
	{Platform: models.PlatformTikTok, Persona: fetch.NavigationPersona, Rules: tiktokRules},
	{Platform: models.PlatformPinterest, Persona: fetch.BrowserPersona, Rules: pinterestRules},
	{Platform: models.PlatformReddit, Persona: fetch.BrowserPersona, Rules: redditRules},
	{Platform: models.PlatformTwitter, Persona: fetch.TwitterbotPersona, Rules: twitterRules},
	{Platform: models.PlatformFacebook, Persona: fetch.FacebookPersona, Rules: facebookRules},
	{Platform: models.PlatformTumblr, Persona: fetch.BrowserPersona, Rules: tumblrRules},
	{Platform: models.PlatformFlickr, Persona: fetch.BrowserPersona, Rules: flickrRules},
	{Platform: models.PlatformVimeo, Persona: fetch.BrowserPersona, Rules: vimeoRules},
	{Platform: models.PlatformTenor, Persona: fetch.BrowserPersona, Rules: tenorRules},
}

// ScrapeSpecs returns a copy of the built-in scrape specs
func ScrapeSpecs() []ScrapeSpec {
	out := make([]ScrapeSpec, len(scrapeSpecs))
	copy(out, scrapeSpecs)
	return out
}
