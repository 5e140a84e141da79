package crawler

import (
	"errors"
	"fmt"
	"time"
)

// DefaultUserAgent identifies as a desktop browser; many sites reject default client identifiers.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var (
	errNegativeDepth = errors.New("crawler: max depth must be >= 0")
	errNegativeDelay = errors.New("crawler: delays must be >= 0")
	errBadTimeout    = errors.New("crawler: timeouts must be > 0")
)

// Config holds the configuration for a crawler instance
type Config struct {
	MaxDepth       int           // Pages discovered at this depth are checked but not expanded
	InterPageDelay time.Duration // Pause after each frontier entry is processed
	PerLinkDelay   time.Duration // Pause after each emitted link result
	PageTimeout    time.Duration // Timeout for page fetches during expansion
	CheckTimeout   time.Duration // Timeout for HEAD status checks
	MaxRedirects   int           // Redirects followed by the status checker
	MaxBodySize    int           // Upper bound on page bodies read during expansion
	UserAgent      string        // User agent string for requests
	SkipSSRFCheck  bool          // Skip SSRF protection (for tests only, never enable in production)
}

// DefaultConfig returns a Config instance with default values
func DefaultConfig() *Config {
	return &Config{
		MaxDepth:       3,
		InterPageDelay: 300 * time.Millisecond,
		PerLinkDelay:   50 * time.Millisecond,
		PageTimeout:    10 * time.Second,
		CheckTimeout:   10 * time.Second,
		MaxRedirects:   10,
		MaxBodySize:    10 << 20,
		UserAgent:      DefaultUserAgent,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: got %d", errNegativeDepth, c.MaxDepth)
	}
	if c.InterPageDelay < 0 || c.PerLinkDelay < 0 {
		return fmt.Errorf("%w: inter-page %s, per-link %s", errNegativeDelay, c.InterPageDelay, c.PerLinkDelay)
	}
	if c.PageTimeout <= 0 || c.CheckTimeout <= 0 {
		return fmt.Errorf("%w: page %s, check %s", errBadTimeout, c.PageTimeout, c.CheckTimeout)
	}
	return nil
}
