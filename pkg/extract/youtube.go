package extract

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/Sriram-PR/img-relay/pkg/models"
)

// ThumbnailTiers are YouTube thumbnail names from best to worst quality.
var ThumbnailTiers = []string{"maxresdefault", "sddefault", "hqdefault", "mqdefault", "default"}

var (
	youtubeIDRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	youtubePathRe = regexp.MustCompile(`^/(?:shorts|embed|live|v)/([A-Za-z0-9_-]{11})`)
)

// YouTubeExtractor synthesizes a thumbnail URL from the video id.
type YouTubeExtractor struct{}

// NewYouTubeExtractor creates a YouTubeExtractor
func NewYouTubeExtractor() *YouTubeExtractor { return &YouTubeExtractor{} }

// Platform implements Extractor
func (e *YouTubeExtractor) Platform() models.Platform { return models.PlatformYouTube }

// TryExtract implements Extractor. The first tier is returned without
// checking it exists; no network call is made.
func (e *YouTubeExtractor) TryExtract(_ context.Context, pageURL string) (string, bool) {
	id, ok := VideoID(pageURL)
	if !ok {
		return "", false
	}
	return ThumbnailCandidates(id)[0], true
}

// VideoID extracts the 11-character id from youtu.be/<id>, watch?v=<id>,
// /shorts/<id>, /embed/<id> and /live/<id> URLs.
func VideoID(pageURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())

	if host == "youtu.be" {
		id := strings.Trim(u.Path, "/")
		if youtubeIDRe.MatchString(id) {
			return id, true
		}
		return "", false
	}

	if v := u.Query().Get("v"); youtubeIDRe.MatchString(v) {
		return v, true
	}
	if m := youtubePathRe.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	return "", false
}

// ThumbnailCandidates lists the thumbnail URL of every tier for id
func ThumbnailCandidates(id string) []string {
	out := make([]string, 0, len(ThumbnailTiers))
	for _, tier := range ThumbnailTiers {
		out = append(out, "https://i.ytimg.com/vi/"+id+"/"+tier+".jpg")
	}
	return out
}
