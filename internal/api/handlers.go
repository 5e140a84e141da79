package api

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/Harvey-AU/linkstream/internal/crawler"
	"github.com/Harvey-AU/linkstream/internal/stream"
	"github.com/Harvey-AU/linkstream/internal/util"
)

// Version is the current API version (can be set via ldflags at build time)
var Version = "0.1.0"

//go:embed static/index.html
var homepage []byte

// CrawlStreamer starts a crawl and returns its event channel.
type CrawlStreamer interface {
	Stream(ctx context.Context, startURL string) <-chan crawler.Event
}

// Handler holds dependencies for API handlers
type Handler struct {
	Crawls    CrawlStreamer
	Heartbeat time.Duration
	Limiter   *RateLimiter // Optional; guards /stream only
}

// NewHandler creates a new API handler with dependencies
func NewHandler(crawls CrawlStreamer, heartbeat time.Duration) *Handler {
	return &Handler{
		Crawls:    crawls,
		Heartbeat: heartbeat,
	}
}

// SetupRoutes configures all API routes
func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/favicon.ico", h.Favicon)
	var streamHandler http.Handler = http.HandlerFunc(h.StreamLinks)
	if h.Limiter != nil {
		streamHandler = h.Limiter.Middleware(streamHandler)
	}
	mux.Handle("/stream", streamHandler)
	mux.HandleFunc("/", h.ServeHomepage)
}

// HealthCheck handles basic health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	WriteHealthy(w, r, "linkstream", Version)
}

// Favicon answers browsers' automatic icon request with an empty response.
func (h *Handler) Favicon(w http.ResponseWriter, r *http.Request) {
	WriteNoContent(w, r)
}

// ServeHomepage serves the single-page crawl viewer.
func (h *Handler) ServeHomepage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFound(w, r, "Not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		MethodNotAllowed(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(homepage)
	}
}

// StreamLinks crawls the site named by the url query parameter and streams
// one SSE frame per checked link, ending with an end frame.
func (h *Handler) StreamLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	sw, err := stream.NewWriter(w)
	if err != nil {
		InternalError(w, r, err)
		return
	}

	logger := loggerWithRequest(r)

	startURL := util.NormaliseStartURL(r.URL.Query().Get("url"))
	if startURL == "" {
		logger.Warn().Msg("Stream requested without a start URL")
		w.WriteHeader(http.StatusOK)
		if err := sw.WriteMissingURL(); err != nil {
			logger.Debug().Err(err).Msg("Failed to write missing URL frame")
		}
		return
	}

	logger = logger.With().Str("start_url", startURL).Logger()
	logger.Info().Msg("Streaming crawl")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	w.WriteHeader(http.StatusOK)
	written, err := sw.Pipe(ctx, h.Crawls.Stream(ctx, startURL), h.Heartbeat)

	switch {
	case errors.Is(err, context.Canceled):
		logger.Info().Int("events", written).Msg("Client disconnected, crawl stopped")
	case err != nil:
		logger.Warn().Err(err).Int("events", written).Msg("Stream ended with write error")
	default:
		logger.Info().Int("events", written).Msg("Stream finished")
	}
}
