// Package match classifies image references by pure string and host inspection.
package match

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Sriram-PR/img-relay/pkg/models"
)

// Classification is the outcome of Classify
type Classification struct {
	Kind     models.Kind
	Platform models.Platform // PlatformNone unless Kind is KindPlatformPage
}

var directImageRe = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|bmp|svg)(?:[?#].*)?$`)

// knownCDNs are host fragments of image CDNs that serve raw bytes directly.
var knownCDNs = []string{
	"i.imgur.com",
	"cdn.discordapp.com",
	"media.discordapp.net",
	"pbs.twimg.com",
	"media.giphy.com",
	"preview.redd.it",
	"i.redd.it",
	"i.pinimg.com",
	"i.ytimg.com",
	"media.tenor.com",
	"live.staticflickr.com",
	"i.vimeocdn.com",
	"cdninstagram.com",
	"fbcdn.net",
	"media.tumblr.com",
}

type platformDomains struct {
	platform models.Platform
	domains  []string
}

// platformOrder is evaluated top to bottom; the first match wins.
var platformOrder = []platformDomains{
	{models.PlatformYouTube, []string{"youtu.be", "youtube.com", "youtube-nocookie.com"}},
	{models.PlatformGiphy, []string{"giphy.com"}},
	{models.PlatformImgur, []string{"imgur.com"}},
	{models.PlatformInstagram, []string{"instagram.com", "instagr.am"}},
	{models.PlatformTikTok, []string{"tiktok.com"}},
	{models.PlatformPinterest, []string{"pinterest.com", "pin.it", "pinterest.co.uk"}},
	{models.PlatformReddit, []string{"reddit.com", "redd.it"}},
	{models.PlatformTwitter, []string{"twitter.com", "x.com"}},
	{models.PlatformFacebook, []string{"facebook.com", "fb.watch"}},
	{models.PlatformTumblr, []string{"tumblr.com"}},
	{models.PlatformFlickr, []string{"flickr.com", "flic.kr"}},
	{models.PlatformVimeo, []string{"vimeo.com"}},
	{models.PlatformTenor, []string{"tenor.com"}},
}

// Classify inspects reference and reports what kind of resource it names.
// It never fails and never performs I/O.
func Classify(reference string) Classification {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return Classification{Kind: models.KindUnknown}
	}

	if directImageRe.MatchString(ref) {
		return Classification{Kind: models.KindDirectImage}
	}

	host := Host(ref)
	if host == "" {
		return Classification{Kind: models.KindUnknown}
	}

	for _, cdn := range knownCDNs {
		if strings.Contains(host, cdn) {
			return Classification{Kind: models.KindKnownCDN}
		}
	}

	if p := PlatformForHost(host); p != models.PlatformNone {
		return Classification{Kind: models.KindPlatformPage, Platform: p}
	}
	return Classification{Kind: models.KindUnknown}
}

// Host returns the lowercased host of reference, or "" when it has none.
// Scheme-less references such as "imgur.com/abc" are read as https.
func Host(reference string) string {
	ref := strings.TrimSpace(reference)
	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}

// PlatformForHost maps a host onto a platform, matching the domain itself
// or any subdomain of it. "notx.com" is not x.com.
func PlatformForHost(host string) models.Platform {
	host = strings.ToLower(host)
	for _, pd := range platformOrder {
		for _, d := range pd.domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return pd.platform
			}
		}
	}
	return models.PlatformNone
}

// Platforms lists supported platforms in evaluation order
func Platforms() []models.Platform {
	out := make([]models.Platform, 0, len(platformOrder))
	for _, pd := range platformOrder {
		out = append(out, pd.platform)
	}
	return out
}
