package crawler

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

// ExpandLinks fetches pageURL and returns the eligible, absolute, in-domain
// links on it that are not yet in seen. A page that cannot be fetched yields
// no links; it never fails the crawl.
func (c *Crawler) ExpandLinks(ctx context.Context, pageURL string, seen SeenSet, domain string) map[string]struct{} {
	links := make(map[string]struct{})

	base, err := url.Parse(pageURL)
	if err != nil {
		log.Warn().Err(err).Str("url", pageURL).Msg("Cannot expand unparseable page URL")
		return links
	}

	// Callbacks are registered on a clone so concurrent crawls never share them.
	clone := c.colly.Clone()
	clone.Context = ctx

	clone.OnRequest(func(r *colly.Request) {
		setBrowserHeaders(*r.Headers, c.config.UserAgent)
		log.Debug().
			Str("url", r.URL.String()).
			Msg("Crawler sending request")
	})

	clone.OnHTML("html", func(e *colly.HTMLElement) {
		e.DOM.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if link, ok := acceptLink(base, href, seen, domain); ok {
				links[link] = struct{}{}
			}
		})
	})

	clone.OnError(func(r *colly.Response, err error) {
		log.Warn().
			Err(err).
			Str("url", pageURL).
			Int("status", r.StatusCode).
			Msg("Error fetching page, no links extracted")
	})

	if err := clone.Visit(pageURL); err != nil {
		log.Debug().
			Err(err).
			Str("url", pageURL).
			Msg("Page expansion ended with error")
		return make(map[string]struct{})
	}

	log.Debug().
		Str("url", pageURL).
		Int("new_links", len(links)).
		Msg("Expanded page")

	return links
}

// acceptLink applies the link policy to one href found on the page at base.
func acceptLink(base *url.URL, href string, seen SeenSet, domain string) (string, bool) {
	href = strings.TrimSpace(href)
	if !IsEligible(href) {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	resolved.RawFragment = ""

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host != domain {
		return "", false
	}

	link := resolved.String()
	if seen.Has(link) {
		return "", false
	}
	return link, true
}
