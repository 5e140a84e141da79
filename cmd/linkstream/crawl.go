package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/Harvey-AU/linkstream/internal/config"
	"github.com/Harvey-AU/linkstream/internal/crawler"
	"github.com/Harvey-AU/linkstream/internal/report"
	"github.com/Harvey-AU/linkstream/internal/stream"
	"github.com/Harvey-AU/linkstream/internal/util"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const (
	formatSSE      = "sse"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

var (
	errUnknownFormat  = errors.New("unknown output format")
	errCrawlCancelled = errors.New("crawl cancelled")
)

type crawlOptions struct {
	depth        int
	delay        float64
	linkDelay    float64
	format       string
	quiet        bool
	allowPrivate bool
}

// eventSource is satisfied by *crawler.Engine.
type eventSource interface {
	Events(ctx context.Context, startURL string) iter.Seq[crawler.Event]
}

// progress is satisfied by *progressbar.ProgressBar.
type progress interface {
	Add(num int) error
	Finish() error
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd(root *rootOptions) *cobra.Command {
	opts := &crawlOptions{}
	defaults := crawler.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site and report the status of every link",
		Long: `Crawl starts at the given URL, follows in-domain links breadth first up to
--depth levels and prints one result per checked link.

A URL without a scheme is crawled over https.

Output formats:
  sse       the exact frames the /stream endpoint sends (default)
  json      one JSON object per line
  markdown  a summary report once the crawl ends

Examples:
  linkstream crawl example.com
  linkstream crawl --depth 1 --format json https://example.com/docs
  linkstream crawl --format markdown example.com > report.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains([]string{formatSSE, formatJSON, formatMarkdown}, opts.format) {
				return fmt.Errorf("%w %q: use sse, json or markdown", errUnknownFormat, opts.format)
			}

			cfg, err := opts.crawlerConfig(cmd, root.config)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			linkCrawler := crawler.New(cfg)
			engine := crawler.NewEngine(linkCrawler, linkCrawler, cfg)
			bar := newSpinner(cmd.ErrOrStderr(), opts.quiet)

			return runCrawl(ctx, cmd.OutOrStdout(), engine, util.NormaliseStartURL(args[0]), opts.format, bar)
		},
	}

	cmd.Flags().IntVarP(&opts.depth, "depth", "d", defaults.MaxDepth, "Maximum link depth to expand")
	cmd.Flags().Float64Var(&opts.delay, "delay", defaults.InterPageDelay.Seconds(), "Seconds to pause after each page")
	cmd.Flags().Float64Var(&opts.linkDelay, "link-delay", defaults.PerLinkDelay.Seconds(), "Seconds to pause after each link result")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatSSE, "Output format: sse, json or markdown")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Hide the progress spinner")
	cmd.Flags().BoolVar(&opts.allowPrivate, "allow-private", false, "Allow private and loopback addresses, e.g. a local dev server")

	return cmd
}

// crawlerConfig layers explicitly set flags over the loaded configuration.
func (o *crawlOptions) crawlerConfig(cmd *cobra.Command, appConfig *config.Config) (*crawler.Config, error) {
	cfg := crawler.DefaultConfig()
	if appConfig != nil {
		cfg = appConfig.CrawlerConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("depth") {
		cfg.MaxDepth = o.depth
	}
	if flags.Changed("delay") {
		cfg.InterPageDelay = time.Duration(o.delay * float64(time.Second))
	}
	if flags.Changed("link-delay") {
		cfg.PerLinkDelay = time.Duration(o.linkDelay * float64(time.Second))
	}
	cfg.SkipSSRFCheck = o.allowPrivate

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newSpinner(w io.Writer, quiet bool) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Checking links"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(!quiet),
	)
}

// runCrawl writes each event in the chosen format as it arrives. Markdown is
// written once, after the last event.
func runCrawl(ctx context.Context, out io.Writer, source eventSource, startURL, format string, bar progress) error {
	summary := report.NewSummary(startURL)

	var writeErr error
	for evt := range source.Events(ctx, startURL) {
		summary.Add(evt)
		if evt.Kind == crawler.EventLinkResult {
			_ = bar.Add(1)
		}

		switch format {
		case formatSSE:
			_, writeErr = out.Write(stream.Encode(evt))
		case formatJSON:
			_, writeErr = out.Write(stream.EncodeJSON(evt))
		}
		if writeErr != nil {
			break
		}
	}
	_ = bar.Finish()

	if writeErr != nil {
		return fmt.Errorf("failed to write output: %w", writeErr)
	}

	if format == formatMarkdown {
		if err := summary.WriteMarkdown(out); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	switch {
	case summary.StartError != "":
		return fmt.Errorf("%s: %q", summary.StartError, startURL)
	case !summary.Finished:
		log.Warn().Int("checked", summary.Checked).Msg("Crawl interrupted")
		return errCrawlCancelled
	}
	return nil
}
