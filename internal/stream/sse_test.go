package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Harvey-AU/linkstream/internal/crawler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		event    crawler.Event
		expected string
	}{
		{
			name:     "numeric_status",
			event:    crawler.LinkResult("https://example.com/a", crawler.StatusCode(200)),
			expected: "data: {\"url\":\"https://example.com/a\",\"status\":200}\n\n",
		},
		{
			name:     "failure_status",
			event:    crawler.LinkResult("https://example.com/b", crawler.TimeoutStatus()),
			expected: "data: {\"url\":\"https://example.com/b\",\"status\":\"Error: Timeout\"}\n\n",
		},
		{
			name:     "query_not_escaped",
			event:    crawler.LinkResult("https://example.com/s?a=1&b=<2>", crawler.StatusCode(404)),
			expected: "data: {\"url\":\"https://example.com/s?a=1&b=<2>\",\"status\":404}\n\n",
		},
		{
			name:     "start_error",
			event:    crawler.StartError("not a url", crawler.InvalidStartReason),
			expected: "event: error\ndata: {\"url\":\"not a url\",\"status\":\"Error: Invalid start URL\"}\n\n",
		},
		{
			name:     "end",
			event:    crawler.CrawlEnd(12),
			expected: "event: end\ndata: {\"status\":\"finished\",\"count\":12}\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(Encode(tt.event)))
		})
	}
}

func TestEncodeJSON(t *testing.T) {
	tests := []struct {
		name     string
		event    crawler.Event
		expected string
	}{
		{"link", crawler.LinkResult("https://example.com/?a=1&b=2", crawler.StatusCode(200)),
			`{"event":"link","url":"https://example.com/?a=1&b=2","status":200}` + "\n"},
		{"failure", crawler.LinkResult("https://example.com/slow", crawler.TimeoutStatus()),
			`{"event":"link","url":"https://example.com/slow","status":"Error: Timeout"}` + "\n"},
		{"start error", crawler.StartError("nope", crawler.InvalidStartReason),
			`{"event":"error","url":"nope","status":"Error: Invalid start URL"}` + "\n"},
		{"end", crawler.CrawlEnd(0),
			`{"event":"end","status":"finished","count":0}` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(EncodeJSON(tt.event)))
		})
	}
}

func TestEncodeMissingURL(t *testing.T) {
	assert.Equal(t, "event: error\ndata: {\"status\":\"Error: No URL provided.\"}\n\n", string(EncodeMissingURL()))
}

func TestEncodeComment(t *testing.T) {
	assert.Equal(t, ": keepalive\n\n", string(EncodeComment("keepalive")))
}

func TestNewWriterSetsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	sw, err := NewWriter(rec)
	require.NoError(t, err)
	require.NoError(t, sw.WriteEvent(crawler.CrawlEnd(0)))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.True(t, rec.Flushed)
	assert.Equal(t, "event: end\ndata: {\"status\":\"finished\",\"count\":0}\n\n", rec.Body.String())
}

type plainWriter struct {
	header http.Header
}

func (p *plainWriter) Header() http.Header         { return p.header }
func (p *plainWriter) Write(b []byte) (int, error) { return len(b), nil }
func (p *plainWriter) WriteHeader(int)             {}

func TestNewWriterRequiresFlusher(t *testing.T) {
	_, err := NewWriter(&plainWriter{header: http.Header{}})
	assert.ErrorIs(t, err, ErrStreamingUnsupported)
}

func TestPipeWritesEventsInOrder(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec)
	require.NoError(t, err)

	events := make(chan crawler.Event, 3)
	events <- crawler.LinkResult("https://example.com", crawler.StatusCode(200))
	events <- crawler.LinkResult("https://example.com/x", crawler.StatusCode(500))
	events <- crawler.CrawlEnd(2)
	close(events)

	n, err := sw.Pipe(context.Background(), events, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	body := rec.Body.String()
	assert.Equal(t, 3, strings.Count(body, "\n\n"))
	assert.True(t, strings.HasSuffix(body, "event: end\ndata: {\"status\":\"finished\",\"count\":2}\n\n"))
	assert.Less(t, strings.Index(body, "\"status\":200"), strings.Index(body, "\"status\":500"))
}

func TestPipeSendsKeepalives(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec)
	require.NoError(t, err)

	events := make(chan crawler.Event)
	go func() {
		time.Sleep(60 * time.Millisecond)
		events <- crawler.CrawlEnd(0)
		close(events)
	}()

	n, err := sw.Pipe(context.Background(), events, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, rec.Body.String(), ": keepalive\n\n")
}

func TestPipeStopsOnCancellation(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := sw.Pipe(ctx, make(chan crawler.Event), 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
