package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Harvey-AU/linkstream/internal/api"
	"github.com/Harvey-AU/linkstream/internal/config"
	"github.com/Harvey-AU/linkstream/internal/crawler"
	"github.com/Harvey-AU/linkstream/internal/logging"
	"github.com/Harvey-AU/linkstream/internal/observability"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Getenv("LINKSTREAM_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	closeLog := logging.Setup(logging.Options{
		Level:   cfg.LogLevel,
		Env:     cfg.Env,
		Service: config.AppName,
	})
	defer closeLog()

	// Initialise Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
			TracesSampleRate: func() float64 {
				if cfg.Env == "production" {
					return 0.1 // 10% sampling in production
				}
				return 1.0
			}(),
			AttachStacktrace: true,
			Debug:            cfg.IsDevelopment(),
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise Sentry")
		} else {
			log.Info().Str("environment", cfg.Env).Msg("Sentry initialised successfully")
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Warn().Msg("Sentry DSN not configured, error tracking disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var obsProviders *observability.Providers
	if cfg.Observability.Enabled {
		obsProviders, err = observability.Init(ctx, observability.Config{
			Enabled:        true,
			ServiceName:    config.AppName,
			Environment:    cfg.Env,
			OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
			OTLPHeaders:    parseOTLPHeaders(cfg.Observability.OTLPHeaders),
			OTLPInsecure:   cfg.Observability.OTLPInsecure,
			MetricsAddress: cfg.Observability.MetricsAddr,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise observability providers")
			obsProviders = nil
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := obsProviders.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("Failed to flush telemetry providers cleanly")
				}
			}()
		}
	}

	crawlerConfig := cfg.CrawlerConfig()
	linkCrawler := crawler.New(crawlerConfig)
	engine := crawler.NewEngine(linkCrawler, linkCrawler, crawlerConfig)

	apiHandler := api.NewHandler(engine, cfg.HeartbeatInterval())
	apiHandler.Limiter = api.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)

	mux := http.NewServeMux()
	apiHandler.SetupRoutes(mux)

	// Add middleware in reverse order (outermost last)
	var handler http.Handler = mux
	handler = api.LoggingMiddleware(handler)
	handler = api.RequestIDMiddleware(handler)
	handler = api.RecoverMiddleware(handler)
	handler = api.SecurityHeadersMiddleware(handler)
	handler = api.CrossOriginProtectionMiddleware(handler)
	handler = api.CORSMiddleware(handler)
	handler = observability.WrapHandler(handler, obsProviders)

	// No WriteTimeout: streams stay open for the whole crawl.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	servers := []*http.Server{server}
	if obsProviders != nil && obsProviders.MetricsHandler != nil && cfg.Observability.MetricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.Observability.MetricsAddr,
			Handler:           obsProviders.MetricsHandler,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("Server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				sentry.CaptureException(err)
				return fmt.Errorf("server on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				sentry.CaptureException(err)
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	log.Info().Str("homepage", baseURL).Msg("Linkstream ready")
	log.Info().Str("health", baseURL+"/health").Msg("Health check")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server error")
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
	log.Info().Msg("Server stopped")
}

func parseOTLPHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return headers
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		headers[key] = strings.TrimSpace(value)
	}

	return headers
}
