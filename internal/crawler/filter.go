package crawler

import "strings"

var (
	excludedPrefixes = []string{"#", "tel:", "mailto:", "javascript:"}

	excludedExtensions = []string{
		".jpg", ".jpeg", ".png", ".gif", ".webp",
		".pdf", ".zip",
		".css", ".js",
		".mp4", ".mp3",
	}

	// Matched as substrings of the whole href, so share links that carry these
	// hosts in a query string are excluded as well.
	excludedDomains = []string{
		"facebook.com",
		"twitter.com",
		"youtube.com",
		"instagram.com",
		"linkedin.com",
		"tiktok.com",
	}
)

// IsEligible reports whether a raw href should be considered for traversal.
func IsEligible(href string) bool {
	href = strings.TrimSpace(href)

	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(href, prefix) {
			return false
		}
	}

	lower := strings.ToLower(href)
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}

	for _, domain := range excludedDomains {
		if strings.Contains(href, domain) {
			return false
		}
	}

	return true
}
