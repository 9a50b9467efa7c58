package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sriram-PR/img-relay/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		kind     models.Kind
		platform models.Platform
	}{
		{"empty", "", models.KindUnknown, models.PlatformNone},
		{"blank", "   ", models.KindUnknown, models.PlatformNone},
		{"direct jpg", "https://example.com/cat.jpg", models.KindDirectImage, models.PlatformNone},
		{"direct uppercase", "https://example.com/CAT.PNG", models.KindDirectImage, models.PlatformNone},
		{"direct with query", "https://example.com/a.webp?w=200&h=100", models.KindDirectImage, models.PlatformNone},
		{"direct with fragment", "https://x.com/pic.jpg#frag", models.KindDirectImage, models.PlatformNone},
		{"direct with query and fragment", "https://example.com/a.png?v=2#top", models.KindDirectImage, models.PlatformNone},
		{"direct svg", "https://example.com/logo.svg", models.KindDirectImage, models.PlatformNone},
		{"direct bmp", "https://example.com/old.bmp", models.KindDirectImage, models.PlatformNone},
		{"direct on platform host", "https://www.instagram.com/static/x.jpeg", models.KindDirectImage, models.PlatformNone},
		{"not direct mid-path", "https://example.com/photo.jpg/view", models.KindUnknown, models.PlatformNone},
		{"cdn imgur", "https://i.imgur.com/abc123", models.KindKnownCDN, models.PlatformNone},
		{"cdn discord", "https://cdn.discordapp.com/attachments/1/2/file", models.KindKnownCDN, models.PlatformNone},
		{"cdn twimg", "https://pbs.twimg.com/media/Fx?format=jpg&name=large", models.KindKnownCDN, models.PlatformNone},
		{"cdn reddit preview", "https://preview.redd.it/xyz?width=640", models.KindKnownCDN, models.PlatformNone},
		{"cdn instagram subdomain", "https://scontent-lax3-1.cdninstagram.com/v/t51/abc", models.KindKnownCDN, models.PlatformNone},
		{"cdn tumblr numbered", "https://64.media.tumblr.com/abc/s640x960", models.KindKnownCDN, models.PlatformNone},
		{"youtube short link", "https://youtu.be/dQw4w9WgXcQ", models.KindPlatformPage, models.PlatformYouTube},
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", models.KindPlatformPage, models.PlatformYouTube},
		{"youtube mobile", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", models.KindPlatformPage, models.PlatformYouTube},
		{"giphy", "https://giphy.com/gifs/funny-cat-xyz123", models.KindPlatformPage, models.PlatformGiphy},
		{"imgur page", "https://imgur.com/abc123", models.KindPlatformPage, models.PlatformImgur},
		{"imgur album", "https://imgur.com/a/xyz", models.KindPlatformPage, models.PlatformImgur},
		{"instagram", "https://www.instagram.com/p/Cabc123/", models.KindPlatformPage, models.PlatformInstagram},
		{"tiktok", "https://www.tiktok.com/@user/video/123", models.KindPlatformPage, models.PlatformTikTok},
		{"pinterest short", "https://pin.it/abc", models.KindPlatformPage, models.PlatformPinterest},
		{"pinterest uk", "https://www.pinterest.co.uk/pin/123/", models.KindPlatformPage, models.PlatformPinterest},
		{"reddit", "https://www.reddit.com/r/pics/comments/abc/title/", models.KindPlatformPage, models.PlatformReddit},
		{"twitter", "https://twitter.com/user/status/1", models.KindPlatformPage, models.PlatformTwitter},
		{"x", "https://x.com/user/status/1", models.KindPlatformPage, models.PlatformTwitter},
		{"facebook", "https://www.facebook.com/photo/?fbid=1", models.KindPlatformPage, models.PlatformFacebook},
		{"tumblr", "https://staff.tumblr.com/post/1", models.KindPlatformPage, models.PlatformTumblr},
		{"flickr short", "https://flic.kr/p/abc", models.KindPlatformPage, models.PlatformFlickr},
		{"vimeo", "https://vimeo.com/12345", models.KindPlatformPage, models.PlatformVimeo},
		{"tenor", "https://tenor.com/view/cat-gif-123", models.KindPlatformPage, models.PlatformTenor},
		{"lookalike host not shadowed", "https://notx.com/page", models.KindUnknown, models.PlatformNone},
		{"lookalike suffix", "https://myreddit.com/page", models.KindUnknown, models.PlatformNone},
		{"scheme-less platform", "imgur.com/abc123", models.KindPlatformPage, models.PlatformImgur},
		{"unknown site", "https://example.com/article", models.KindUnknown, models.PlatformNone},
		{"opaque", "not a url at all", models.KindUnknown, models.PlatformNone},
		{"unparseable", "http://[::1", models.KindUnknown, models.PlatformNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.ref)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.platform, got.Platform)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	ref := "https://www.instagram.com/p/Cabc123/"
	first := Classify(ref)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(ref))
	}
}

func TestHost(t *testing.T) {
	assert.Equal(t, "www.example.com", Host("HTTPS://WWW.Example.COM/path"))
	assert.Equal(t, "imgur.com", Host("imgur.com/abc"))
	assert.Equal(t, "example.com", Host("https://example.com./x"))
	assert.Equal(t, "", Host(""))
	assert.Equal(t, "", Host("http://[::1"))
}

func TestPlatforms_Order(t *testing.T) {
	got := Platforms()
	assert.Len(t, got, 13)
	assert.Equal(t, models.PlatformYouTube, got[0])
	assert.Equal(t, models.PlatformTenor, got[len(got)-1])
}
