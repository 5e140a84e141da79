package util

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrNoHost is returned when a URL has no network location.
	ErrNoHost = errors.New("url has no host")
	// ErrUnsupportedScheme is returned for schemes other than http and https.
	ErrUnsupportedScheme = errors.New("url scheme must be http or https")
)

// NormaliseStartURL trims the URL and adds an https:// scheme when none is present.
// Unlike a full normalisation it never rewrites an explicit http:// scheme.
func NormaliseStartURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	if strings.HasPrefix(rawURL, "//") {
		return "https:" + rawURL
	}
	if !strings.Contains(rawURL, "://") {
		return "https://" + rawURL
	}

	return rawURL
}

// HostOf returns the network location (host[:port]) of an absolute http or https URL.
func HostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	if parsed.Host == "" {
		return "", ErrNoHost
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}

	return parsed.Host, nil
}

// ExtractPathFromURL extracts just the path component from a full URL
func ExtractPathFromURL(fullURL string) string {
	parsed, err := url.Parse(fullURL)
	if err != nil || parsed.Host == "" {
		return fullURL
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}

	return path
}
