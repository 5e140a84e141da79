package crawler

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// setBrowserHeaders adds browser-like headers to avoid being blocked.
func setBrowserHeaders(h http.Header, userAgent string) {
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
}

// decodingTransport decodes gzip, deflate and brotli bodies. Compression is
// negotiated explicitly, so the standard transport's transparent gzip is off.
type decodingTransport struct {
	transport http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.transport.RoundTrip(req)
	if err != nil || resp.Body == nil || req.Method == http.MethodHead {
		return resp, err
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	var decoded io.Reader
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		decoded = gz
	case "deflate":
		decoded = flate.NewReader(resp.Body)
	case "br":
		decoded = brotli.NewReader(resp.Body)
	default:
		return resp, nil
	}

	resp.Body = &decodedBody{Reader: decoded, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// decodedBody reads decoded bytes but closes the decoder and the raw body.
type decodedBody struct {
	io.Reader
	raw io.ReadCloser
}

func (b *decodedBody) Close() error {
	if c, ok := b.Reader.(io.Closer); ok {
		_ = c.Close()
	}
	return b.raw.Close()
}

// newTransport builds the shared transport for page fetches and status checks.
func newTransport(config *Config) http.RoundTripper {
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
		ForceAttemptHTTP2:   true,
	}
	if !config.SkipSSRFCheck {
		base.DialContext = ssrfSafeDialContext()
	}

	return &decodingTransport{transport: base}
}
