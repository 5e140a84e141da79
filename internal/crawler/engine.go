package crawler

import (
	"context"
	"errors"
	"iter"
	"maps"
	"slices"
	"time"

	"github.com/Harvey-AU/linkstream/internal/observability"
	"github.com/Harvey-AU/linkstream/internal/util"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// InvalidStartReason is the status text carried by a StartError event.
const InvalidStartReason = "Error: Invalid start URL"

// ErrInvalidStartURL marks a seed whose domain could not be determined.
var ErrInvalidStartURL = errors.New("invalid start URL")

// LinkExpander fetches a page and returns its new in-domain links.
type LinkExpander interface {
	ExpandLinks(ctx context.Context, pageURL string, seen SeenSet, domain string) map[string]struct{}
}

// StatusChecker reports the status of a single URL.
type StatusChecker interface {
	CheckStatus(ctx context.Context, url string) LinkStatus
}

type frontierEntry struct {
	url   string
	depth int
}

// Engine drives a breadth-first crawl of one domain and emits an Event for
// every URL it checks. Each call to Events or Stream runs an independent crawl
// with its own seen set and frontier.
type Engine struct {
	expander LinkExpander
	checker  StatusChecker
	config   *Config
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an Engine. If config is nil, default configuration is used.
func NewEngine(expander LinkExpander, checker StatusChecker, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		expander: expander,
		checker:  checker,
		config:   config,
		sleep:    sleepContext,
	}
}

// ValidateStartURL returns the domain of startURL or ErrInvalidStartURL.
func ValidateStartURL(startURL string) (string, error) {
	domain, err := util.HostOf(startURL)
	if err != nil {
		return "", errors.Join(ErrInvalidStartURL, err)
	}
	return domain, nil
}

// Events returns the lazy event sequence of a crawl rooted at startURL. No
// network activity happens until the sequence is ranged over, and breaking
// out of the range stops the crawl before its next fetch.
func (e *Engine) Events(ctx context.Context, startURL string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		e.run(ctx, startURL, yield)
	}
}

// Stream runs the crawl in its own goroutine and delivers events on an
// unbuffered channel, so the crawl advances only as fast as the consumer
// reads. The channel is closed after the terminal event or on cancellation.
func (e *Engine) Stream(ctx context.Context, startURL string) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)
		for evt := range e.Events(ctx, startURL) {
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events
}

func (e *Engine) run(ctx context.Context, startURL string, yield func(Event) bool) {
	crawlID := uuid.NewString()
	logger := log.With().
		Str("crawl_id", crawlID).
		Str("start_url", startURL).
		Logger()
	start := time.Now()

	domain, err := ValidateStartURL(startURL)

	ctx, span := observability.StartCrawlSpan(ctx, observability.CrawlSpanInfo{
		CrawlID:  crawlID,
		StartURL: startURL,
		Domain:   domain,
		MaxDepth: e.config.MaxDepth,
	})
	defer span.End()

	if err != nil {
		logger.Warn().Err(err).Msg("Rejecting crawl with invalid start URL")
		span.SetStatus(codes.Error, "invalid start URL")
		observability.RecordCrawl(ctx, observability.CrawlMetrics{Outcome: "invalid_start", Duration: time.Since(start)})
		yield(StartError(startURL, InvalidStartReason))
		return
	}

	logger.Info().
		Str("domain", domain).
		Int("max_depth", e.config.MaxDepth).
		Msg("Starting crawl")

	seen := make(SeenSet)
	outcome := "cancelled"
	defer func() {
		span.SetAttributes(attribute.Int("crawl.count", len(seen)))
		observability.RecordCrawl(ctx, observability.CrawlMetrics{
			Outcome:  outcome,
			Count:    len(seen),
			Duration: time.Since(start),
		})
		logger.Info().
			Str("outcome", outcome).
			Int("count", len(seen)).
			Dur("duration", time.Since(start)).
			Msg("Crawl finished")
	}()

	if _, ok := e.check(ctx, startURL, seen, yield); !ok {
		return
	}

	frontier := []frontierEntry{{url: startURL, depth: 0}}
	for len(frontier) > 0 {
		entry := frontier[0]
		frontier = frontier[1:]

		if entry.depth < e.config.MaxDepth {
			if ctx.Err() != nil {
				return
			}
			newLinks := e.expander.ExpandLinks(ctx, entry.url, seen, domain)
			observability.RecordPageExpanded(ctx, len(newLinks))

			logger.Debug().
				Str("page", entry.url).
				Int("depth", entry.depth).
				Int("new_links", len(newLinks)).
				Msg("Expanded page")

			for _, link := range slices.Sorted(maps.Keys(newLinks)) {
				if seen.Has(link) {
					continue
				}

				status, ok := e.check(ctx, link, seen, yield)
				if !ok {
					return
				}

				if status.Followable() {
					frontier = append(frontier, frontierEntry{url: link, depth: entry.depth + 1})
				} else {
					logSkipped(logger, link, status)
				}

				if e.sleep(ctx, e.config.PerLinkDelay) != nil {
					return
				}
			}
		}

		if e.sleep(ctx, e.config.InterPageDelay) != nil {
			return
		}
	}

	outcome = "completed"
	yield(CrawlEnd(len(seen)))
}

// check marks url as seen, checks it and yields the result. It reports false
// when the crawl must stop.
func (e *Engine) check(ctx context.Context, url string, seen SeenSet, yield func(Event) bool) (LinkStatus, bool) {
	if ctx.Err() != nil {
		return LinkStatus{}, false
	}

	seen.Add(url)
	status := e.checker.CheckStatus(ctx, url)
	if ctx.Err() != nil {
		return status, false
	}

	observability.RecordLinkChecked(ctx, status.Class())
	return status, yield(LinkResult(url, status))
}

func logSkipped(logger zerolog.Logger, link string, status LinkStatus) {
	if status.IsFailure() {
		logger.Debug().Str("url", link).Str("status", status.String()).Msg("Not following link that failed its check")
		return
	}
	logger.Debug().Str("url", link).Int("status", status.Code).Msg("Not following link with error status")
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
