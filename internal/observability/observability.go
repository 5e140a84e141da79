// Package observability wires OpenTelemetry tracing and Prometheus metrics
// for crawls and the HTTP API.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls observability initialisation.
type Config struct {
	Enabled        bool
	ServiceName    string
	Environment    string
	OTLPEndpoint   string
	OTLPHeaders    map[string]string
	OTLPInsecure   bool
	MetricsAddress string
}

// Providers exposes configured telemetry providers.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Propagator     propagation.TextMapPropagator
	MetricsHandler http.Handler
	Shutdown       func(ctx context.Context) error
	Config         Config
}

var (
	initOnce sync.Once

	crawlTracer trace.Tracer

	crawlDuration   metric.Float64Histogram
	crawlTotal      metric.Int64Counter
	linksChecked    metric.Int64Counter
	pagesExpanded   metric.Int64Counter
	linksDiscovered metric.Int64Histogram
)

// Init configures tracing and metrics exporters. When cfg.Enabled is false the function is a no-op.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "linkstream"
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	var spanExporter sdktrace.SpanExporter
	if cfg.OTLPEndpoint != "" {
		clientOpts := []otlptracehttp.Option{
			getOTLPEndpointOption(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		if len(cfg.OTLPHeaders) > 0 {
			clientOpts = append(clientOpts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
		}

		exp, err := otlptracehttp.New(ctx, clientOpts...)
		if err != nil {
			// Traces are optional; keep serving without them
			log.Warn().Err(err).Str("endpoint", cfg.OTLPEndpoint).Msg("Failed to create OTLP trace exporter, traces disabled")
		} else {
			spanExporter = exp
			log.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("OTLP trace exporter initialised")
		}
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
	if spanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter))
	}

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)

	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	promExporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx) // best-effort cleanup
		return nil, fmt.Errorf("create Prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(meterProvider)

	initOnce.Do(func() {
		crawlTracer = tracerProvider.Tracer("linkstream/crawler")
		_ = initCrawlInstruments(meterProvider)
	})

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var allErr error
		if err := meterProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("metric provider shutdown: %w", err))
		}
		if err := tracerProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("trace provider shutdown: %w", err))
		}
		return allErr
	}

	return &Providers{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Propagator:     prop,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Shutdown:       shutdown,
		Config:         cfg,
	}, nil
}

func getOTLPEndpointOption(endpoint string) otlptracehttp.Option {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return otlptracehttp.WithEndpointURL(endpoint)
	}
	return otlptracehttp.WithEndpoint(endpoint)
}

// WrapHandler applies OpenTelemetry instrumentation to an http.Handler when the providers are active.
func WrapHandler(handler http.Handler, prov *Providers) http.Handler {
	if prov == nil || prov.TracerProvider == nil {
		return handler
	}

	options := []otelhttp.Option{
		otelhttp.WithTracerProvider(prov.TracerProvider),
		otelhttp.WithPropagators(prov.Propagator),
		otelhttp.WithMeterProvider(prov.MeterProvider),
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/favicon.ico"
		}),
	}

	return otelhttp.NewHandler(handler, "http.server", options...)
}

func initCrawlInstruments(meterProvider *sdkmetric.MeterProvider) error {
	if meterProvider == nil {
		return nil
	}

	meter := meterProvider.Meter("linkstream/crawler")

	var err error
	crawlDuration, err = meter.Float64Histogram(
		"linkstream.crawl.duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("Wall time of a crawl from seed check to terminal event"),
	)
	if err != nil {
		return err
	}

	crawlTotal, err = meter.Int64Counter(
		"linkstream.crawl.total",
		metric.WithDescription("Counts crawls by outcome"),
	)
	if err != nil {
		return err
	}

	linksChecked, err = meter.Int64Counter(
		"linkstream.crawl.links_checked",
		metric.WithDescription("Counts link status checks by status class"),
	)
	if err != nil {
		return err
	}

	pagesExpanded, err = meter.Int64Counter(
		"linkstream.crawl.pages_expanded",
		metric.WithDescription("Counts pages fetched for link extraction"),
	)
	if err != nil {
		return err
	}

	linksDiscovered, err = meter.Int64Histogram(
		"linkstream.crawl.links_per_page",
		metric.WithDescription("New in-domain links found per expanded page"),
	)
	return err
}

// CrawlSpanInfo describes the attributes used when starting a crawl span.
type CrawlSpanInfo struct {
	CrawlID  string
	StartURL string
	Domain   string
	MaxDepth int
}

// CrawlMetrics describes a finished crawl for metric recording.
type CrawlMetrics struct {
	Outcome  string
	Count    int
	Duration time.Duration
}

// StartCrawlSpan starts a span covering one whole crawl.
func StartCrawlSpan(ctx context.Context, info CrawlSpanInfo) (context.Context, trace.Span) {
	t := crawlTracer
	if t == nil {
		t = otel.Tracer("linkstream/crawler")
	}

	attrs := []attribute.KeyValue{
		attribute.String("crawl.id", info.CrawlID),
		attribute.String("crawl.start_url", info.StartURL),
		attribute.String("crawl.domain", info.Domain),
		attribute.Int("crawl.max_depth", info.MaxDepth),
	}

	return t.Start(ctx, "crawler.crawl", trace.WithAttributes(attrs...))
}

// RecordLinkChecked counts one status check under its status class.
func RecordLinkChecked(ctx context.Context, class string) {
	if linksChecked != nil {
		linksChecked.Add(ctx, 1, metric.WithAttributes(attribute.String("link.status_class", class)))
	}
}

// RecordPageExpanded counts one page expansion and the links it produced.
func RecordPageExpanded(ctx context.Context, newLinks int) {
	if pagesExpanded != nil {
		pagesExpanded.Add(ctx, 1)
	}
	if linksDiscovered != nil {
		linksDiscovered.Record(ctx, int64(newLinks))
	}
}

// RecordCrawl emits crawl metrics when instrumentation is initialised.
func RecordCrawl(ctx context.Context, metrics CrawlMetrics) {
	attrs := metric.WithAttributes(attribute.String("crawl.outcome", metrics.Outcome))

	if crawlDuration != nil {
		crawlDuration.Record(ctx, float64(metrics.Duration.Milliseconds()), attrs)
	}

	if crawlTotal != nil {
		crawlTotal.Add(ctx, 1, attrs)
	}
}
