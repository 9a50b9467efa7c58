package models

import (
	"fmt"
	"strings"
)

// Kind is the classification of an image reference
type Kind string

const (
	KindUnknown      Kind = "unknown"       // No rule matched; routed to the generic fallback
	KindDirectImage  Kind = "direct_image"  // Ends in a known image extension
	KindKnownCDN     Kind = "known_cdn"     // Host is a known image CDN
	KindPlatformPage Kind = "platform_page" // Host belongs to a supported platform
)

// String implements fmt.Stringer for logging
func (k Kind) String() string {
	if k == "" {
		return string(KindUnknown)
	}
	return string(k)
}

// PassThrough reports whether references of this kind are returned unresolved
func (k Kind) PassThrough() bool {
	return k == KindDirectImage || k == KindKnownCDN
}

// Platform identifies a supported social/media platform
type Platform string

const (
	PlatformNone      Platform = ""
	PlatformYouTube   Platform = "youtube"
	PlatformGiphy     Platform = "giphy"
	PlatformImgur     Platform = "imgur"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformPinterest Platform = "pinterest"
	PlatformReddit    Platform = "reddit"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformTumblr    Platform = "tumblr"
	PlatformFlickr    Platform = "flickr"
	PlatformVimeo     Platform = "vimeo"
	PlatformTenor     Platform = "tenor"
)

// String implements fmt.Stringer for logging
func (p Platform) String() string {
	if p == PlatformNone {
		return "none"
	}
	return string(p)
}

// Variant names a compression policy
type Variant string

const (
	VariantExtreme  Variant = "extreme"  // ~3 KB blocky, never fails after decode
	VariantStandard Variant = "standard" // ~100 KB, may fail over budget
)

// String implements fmt.Stringer for logging
func (v Variant) String() string {
	return string(v)
}

// IsValid returns true if the variant is a known policy
func (v Variant) IsValid() bool {
	switch v {
	case VariantExtreme, VariantStandard:
		return true
	}
	return false
}

// ParseVariant converts user input into a Variant; empty input selects VariantStandard.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return VariantStandard, nil
	}
	if !v.IsValid() {
		return "", fmt.Errorf("unknown compression variant %q (supported: extreme, standard)", s)
	}
	return v, nil
}
