package fetch

import "net/http"

// Persona is a named outbound header set. Platforms reject requests that do
// not look like a browser or a crawler they whitelist.
type Persona struct {
	Name    string
	Headers map[string]string
}

const (
	// DesktopUserAgent is the generic desktop browser identity
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// ImageUserAgent is the identity used for raw image fetches
	ImageUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

var (
	// BrowserPersona is a plain desktop browser page load
	BrowserPersona = Persona{
		Name: "browser",
		Headers: map[string]string{
			"User-Agent":      DesktopUserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}

	// NavigationPersona mimics a top-level browser navigation, header for header.
	NavigationPersona = Persona{
		Name: "navigation",
		Headers: map[string]string{
			"User-Agent":                DesktopUserAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Cache-Control":             "no-cache",
			"Pragma":                    "no-cache",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Sec-Fetch-User":            "?1",
			"Upgrade-Insecure-Requests": "1",
		},
	}

	// TwitterbotPersona is served server-rendered cards with og tags
	TwitterbotPersona = Persona{
		Name:    "twitterbot",
		Headers: map[string]string{"User-Agent": "Twitterbot/1.0"},
	}

	// FacebookPersona is the Facebook link preview crawler
	FacebookPersona = Persona{
		Name:    "facebookexternalhit",
		Headers: map[string]string{"User-Agent": "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)"},
	}

	// ImagePersona is used for image byte fetches. Some CDNs 403 without an image Accept header.
	ImagePersona = Persona{
		Name: "image",
		Headers: map[string]string{
			"User-Agent": ImageUserAgent,
			"Accept":     "image/*,*/*",
			"Referer":    "https://www.google.com/",
		},
	}
)

// Apply sets the persona's headers on req
func (p Persona) Apply(req *http.Request) {
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
}

// WithUserAgent returns a copy of p with the User-Agent replaced. Empty ua returns p unchanged.
func (p Persona) WithUserAgent(ua string) Persona {
	if ua == "" {
		return p
	}
	headers := make(map[string]string, len(p.Headers))
	for k, v := range p.Headers {
		headers[k] = v
	}
	headers["User-Agent"] = ua
	return Persona{Name: p.Name, Headers: headers}
}
