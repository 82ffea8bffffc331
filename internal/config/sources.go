package config

// DefaultUserAgents are rotated per request.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// PastPapers is the pastpapers.co directory browser. Its listing pages link files
// relative to /cie/ and route some links through a view.php interstitial.
func PastPapers() SourceConfig {
	return SourceConfig{
		BaseURL:       "https://pastpapers.co",
		BasePath:      "cie",
		ListingURLs:   []string{"https://pastpapers.co/cie/?dir={subject}"},
		ViewerMarkers: []string{"view.php"},
		Rules:         "simple",
	}
}

// PapaCambridge wraps direct file URLs in download_file.php?files=<url> and names files
// the CAIE way (0478_w24_qp_11.pdf).
func PapaCambridge() SourceConfig {
	return SourceConfig{
		BaseURL:      "https://www.papacambridge.com",
		ListingURLs:  []string{"https://www.papacambridge.com/{subject}"},
		UnwrapMarker: "download_file.php?files=",
		Rules:        "caie",
	}
}
