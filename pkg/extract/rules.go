package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// Rule is one extraction pattern. The first capture group holds the URL.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

func rule(name, pattern string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(pattern)}
}

// jsonField matches "name": "value" in inline JSON, tolerating escapes inside value.
func jsonField(name string) Rule {
	return rule("json:"+name, `"`+regexp.QuoteMeta(name)+`"\s*:\s*"((?:[^"\\]|\\.)+)"`)
}

// cdnFragment matches absolute URLs on hostPattern, including the \/ escaped
// form found in script payloads.
func cdnFragment(name, hostPattern string) Rule {
	return rule("cdn:"+name, `(https?:(?:\\?/){2}`+hostPattern+`\\?/(?:[^"'\s<>\\]|\\/|\\u00[0-9a-fA-F]{2})*)`)
}

// Open-graph image tags in both attribute orders. og:image:width and
// friends are excluded by requiring the closing quote right after the name.
var (
	ogPropertyFirst = rule("og:image", `(?i)<meta[^>]*?(?:property|name)\s*=\s*["']og:image(?::url|:secure_url)?["'][^>]*?content\s*=\s*["']([^"']+)["']`)
	ogContentFirst  = rule("og:image-reversed", `(?i)<meta[^>]*?content\s*=\s*["']([^"']+)["'][^>]*?(?:property|name)\s*=\s*["']og:image(?::url|:secure_url)?["']`)

	twitterImageFirst    = rule("twitter:image", `(?i)<meta[^>]*?(?:name|property)\s*=\s*["']twitter:image(?::src)?["'][^>]*?content\s*=\s*["']([^"']+)["']`)
	twitterImageReversed = rule("twitter:image-reversed", `(?i)<meta[^>]*?content\s*=\s*["']([^"']+)["'][^>]*?(?:name|property)\s*=\s*["']twitter:image(?::src)?["']`)
)

// OpenGraphRules are tried first by every scraping extractor
var OpenGraphRules = []Rule{ogPropertyFirst, ogContentFirst}

var unescaper = strings.NewReplacer(
	`\/`, `/`,
	`\u0026`, `&`,
	`\u002F`, `/`,
	`\u002f`, `/`,
	`\u003D`, `=`,
	`\u003d`, `=`,
	`&amp;`, `&`,
	`&#38;`, `&`,
	`&#x2F;`, `/`,
)

// Unescape reverses the JSON and HTML escaping platforms apply to embedded URLs.
func Unescape(s string) string {
	return unescaper.Replace(strings.TrimSpace(s))
}

// ApplyRules runs rules in order against body and returns the first
// candidate that normalizes to an absolute http(s) URL.
func ApplyRules(pageURL, body string, rules []Rule) (string, string, bool) {
	for _, r := range rules {
		m := r.Pattern.FindStringSubmatch(body)
		if len(m) < 2 {
			continue
		}
		if u, ok := Absolutize(pageURL, Unescape(m[1])); ok {
			return u, r.Name, true
		}
	}
	return "", "", false
}

// Absolutize resolves candidate against pageURL and accepts only http(s) results.
func Absolutize(pageURL, candidate string) (string, bool) {
	if candidate == "" || strings.HasPrefix(candidate, "data:") {
		return "", false
	}
	c, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}
	if !c.IsAbs() {
		base, err := url.Parse(pageURL)
		if err != nil || !base.IsAbs() {
			return "", false
		}
		c = base.ResolveReference(c)
	}
	if c.Scheme != "http" && c.Scheme != "https" || c.Host == "" {
		return "", false
	}
	return c.String(), true
}
