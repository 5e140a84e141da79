package crawler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

var errTooManyRedirects = errors.New("too many redirects")

// Crawler performs the network side of a crawl: page expansion through colly
// and HEAD status checks. It holds no per-crawl state and is safe to share
// between concurrent crawls.
type Crawler struct {
	config  *Config
	colly   *colly.Collector
	checker *http.Client
}

// New creates a new Crawler instance with the given configuration.
// If config is nil, default configuration is used
func New(config *Config) *Crawler {
	if config == nil {
		config = DefaultConfig()
	}

	transport := newTransport(config)

	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(config.MaxBodySize),
	)
	c.SetClient(&http.Client{
		Timeout:   config.PageTimeout,
		Transport: transport,
	})

	checker := &http.Client{
		Timeout:   config.CheckTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("%w: stopped after %d", errTooManyRedirects, config.MaxRedirects)
			}
			return nil
		},
	}

	log.Debug().
		Dur("page_timeout", config.PageTimeout).
		Dur("check_timeout", config.CheckTimeout).
		Bool("ssrf_check", !config.SkipSSRFCheck).
		Msg("Crawler initialised")

	return &Crawler{
		config:  config,
		colly:   c,
		checker: checker,
	}
}

// Config returns the Crawler's configuration.
func (c *Crawler) Config() *Config {
	return c.config
}
