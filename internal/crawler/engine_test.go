package crawler_test

import (
	"context"
	"testing"

	"github.com/Harvey-AU/linkstream/internal/crawler"
	"github.com/Harvey-AU/linkstream/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	seed   = "https://example.com"
	domain = "example.com"
	pageA  = "https://example.com/a"
	pageB  = "https://example.com/b"
	pageC  = "https://example.com/c"
	pageD  = "https://example.com/d"
)

var ok200 = crawler.StatusCode(200)

func newTestEngine(maxDepth int) (*crawler.Engine, *mocks.MockLinkExpander, *mocks.MockStatusChecker) {
	expander := new(mocks.MockLinkExpander)
	checker := new(mocks.MockStatusChecker)
	cfg := &crawler.Config{MaxDepth: maxDepth}
	return crawler.NewEngine(expander, checker, cfg), expander, checker
}

func collect(t *testing.T, engine *crawler.Engine, ctx context.Context, start string) []crawler.Event {
	t.Helper()
	var events []crawler.Event
	for evt := range engine.Events(ctx, start) {
		events = append(events, evt)
	}
	return events
}

func urlsOf(events []crawler.Event) []string {
	var urls []string
	for _, evt := range events {
		if evt.Kind == crawler.EventLinkResult {
			urls = append(urls, evt.URL)
		}
	}
	return urls
}

func TestEngineBreadthFirstOrder(t *testing.T) {
	engine, expander, checker := newTestEngine(3)

	expander.On("ExpandLinks", mock.Anything, seed, mock.Anything, domain).Return(mocks.Links(pageA, pageB))
	expander.On("ExpandLinks", mock.Anything, pageA, mock.Anything, domain).Return(mocks.Links(pageC))
	expander.On("ExpandLinks", mock.Anything, pageB, mock.Anything, domain).Return(mocks.Links(pageD))
	expander.On("ExpandLinks", mock.Anything, pageC, mock.Anything, domain).Return(nil)
	expander.On("ExpandLinks", mock.Anything, pageD, mock.Anything, domain).Return(nil)
	checker.On("CheckStatus", mock.Anything, mock.Anything).Return(ok200)

	events := collect(t, engine, context.Background(), seed)

	require.Len(t, events, 6)
	assert.Equal(t, []string{seed, pageA, pageB, pageC, pageD}, urlsOf(events))
	for _, evt := range events[:5] {
		assert.Equal(t, ok200, evt.Status)
	}
	assert.Equal(t, crawler.CrawlEnd(5), events[5])
	assert.True(t, events[5].Terminal())

	expander.AssertExpectations(t)
	checker.AssertNumberOfCalls(t, "CheckStatus", 5)
}

func TestEngineChecksEachURLOnce(t *testing.T) {
	engine, expander, checker := newTestEngine(3)

	// A careless expander that returns already-seen links must not cause re-checks.
	expander.On("ExpandLinks", mock.Anything, seed, mock.Anything, domain).Return(mocks.Links(pageA, pageB))
	expander.On("ExpandLinks", mock.Anything, pageA, mock.Anything, domain).Return(mocks.Links(seed, pageB))
	expander.On("ExpandLinks", mock.Anything, pageB, mock.Anything, domain).Return(mocks.Links(pageA))
	checker.On("CheckStatus", mock.Anything, mock.Anything).Return(ok200)

	events := collect(t, engine, context.Background(), seed)

	assert.Equal(t, []string{seed, pageA, pageB}, urlsOf(events))
	assert.Equal(t, crawler.CrawlEnd(3), events[len(events)-1])
	checker.AssertNumberOfCalls(t, "CheckStatus", 3)
}

func TestEngineDepthBound(t *testing.T) {
	engine, expander, checker := newTestEngine(1)

	expander.On("ExpandLinks", mock.Anything, seed, mock.Anything, domain).Return(mocks.Links(pageA))
	checker.On("CheckStatus", mock.Anything, mock.Anything).Return(ok200)

	events := collect(t, engine, context.Background(), seed)

	assert.Equal(t, []string{seed, pageA}, urlsOf(events))
	assert.Equal(t, crawler.CrawlEnd(2), events[len(events)-1])
	expander.AssertNotCalled(t, "ExpandLinks", mock.Anything, pageA, mock.Anything, mock.Anything)
}

func TestEngineZeroDepthChecksOnlySeed(t *testing.T) {
	engine, expander, checker := newTestEngine(0)
	checker.On("CheckStatus", mock.Anything, seed).Return(ok200)

	events := collect(t, engine, context.Background(), seed)

	assert.Equal(t, []crawler.Event{crawler.LinkResult(seed, ok200), crawler.CrawlEnd(1)}, events)
	expander.AssertNotCalled(t, "ExpandLinks", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngineOnlyFollowsSuccessfulLinks(t *testing.T) {
	engine, expander, checker := newTestEngine(3)

	expander.On("ExpandLinks", mock.Anything, seed, mock.Anything, domain).Return(mocks.Links(pageA, pageB, pageC, pageD))
	expander.On("ExpandLinks", mock.Anything, pageA, mock.Anything, domain).Return(nil)
	checker.On("CheckStatus", mock.Anything, seed).Return(ok200)
	checker.On("CheckStatus", mock.Anything, pageA).Return(crawler.StatusCode(301))
	checker.On("CheckStatus", mock.Anything, pageB).Return(crawler.StatusCode(404))
	checker.On("CheckStatus", mock.Anything, pageC).Return(crawler.TimeoutStatus())
	checker.On("CheckStatus", mock.Anything, pageD).Return(crawler.ConnectionErrorStatus(""))

	events := collect(t, engine, context.Background(), seed)

	require.Len(t, events, 6)
	assert.Equal(t, crawler.StatusCode(404), events[2].Status)
	assert.Equal(t, "Error: Timeout", events[3].Status.String())
	assert.Equal(t, "Error: ConnectionError", events[4].Status.String())
	assert.Equal(t, crawler.CrawlEnd(5), events[5])

	expander.AssertCalled(t, "ExpandLinks", mock.Anything, pageA, mock.Anything, domain)
	for _, page := range []string{pageB, pageC, pageD} {
		expander.AssertNotCalled(t, "ExpandLinks", mock.Anything, page, mock.Anything, mock.Anything)
	}
}

func TestEngineUnreachableSeedStillEnds(t *testing.T) {
	engine, expander, checker := newTestEngine(3)

	failed := crawler.ConnectionErrorStatus("")
	checker.On("CheckStatus", mock.Anything, seed).Return(failed)
	expander.On("ExpandLinks", mock.Anything, seed, mock.Anything, domain).Return(nil)

	events := collect(t, engine, context.Background(), seed)

	assert.Equal(t, []crawler.Event{crawler.LinkResult(seed, failed), crawler.CrawlEnd(1)}, events)
}

func TestEngineInvalidStartURL(t *testing.T) {
	tests := []string{"not a url", "", "/relative/path", "ftp://example.com/file", "https://bad host"}

	for _, start := range tests {
		t.Run(start, func(t *testing.T) {
			engine, expander, checker := newTestEngine(3)

			events := collect(t, engine, context.Background(), start)

			require.Len(t, events, 1)
			assert.Equal(t, crawler.EventStartError, events[0].Kind)
			assert.Equal(t, start, events[0].URL)
			assert.Equal(t, crawler.InvalidStartReason, events[0].Reason)
			assert.True(t, events[0].Terminal())
			expander.AssertNotCalled(t, "ExpandLinks", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			checker.AssertNotCalled(t, "CheckStatus", mock.Anything, mock.Anything)
		})
	}
}

func TestValidateStartURL(t *testing.T) {
	host, err := crawler.ValidateStartURL("http://example.com:8080/start")
	require.NoError(t, err)
	assert.Equal(t, "example.com:8080", host)

	_, err = crawler.ValidateStartURL("not a url")
	assert.ErrorIs(t, err, crawler.ErrInvalidStartURL)
}

func TestEngineIsLazy(t *testing.T) {
	engine, expander, checker := newTestEngine(3)

	_ = engine.Events(context.Background(), seed)

	expander.AssertNotCalled(t, "ExpandLinks", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	checker.AssertNotCalled(t, "CheckStatus", mock.Anything, mock.Anything)
}

func TestEngineStopsWhenConsumerBreaks(t *testing.T) {
	engine, expander, checker := newTestEngine(3)
	checker.On("CheckStatus", mock.Anything, seed).Return(ok200)

	var first crawler.Event
	for evt := range engine.Events(context.Background(), seed) {
		first = evt
		break
	}

	assert.Equal(t, crawler.LinkResult(seed, ok200), first)
	expander.AssertNotCalled(t, "ExpandLinks", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	checker.AssertNumberOfCalls(t, "CheckStatus", 1)
}

func TestEngineStopsOnCancellation(t *testing.T) {
	engine, expander, checker := newTestEngine(3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker.On("CheckStatus", mock.Anything, seed).Return(ok200)
	expander.On("ExpandLinks", mock.Anything, seed, mock.Anything, domain).
		Run(func(mock.Arguments) { cancel() }).
		Return(mocks.Links(pageA, pageB))

	events := collect(t, engine, ctx, seed)

	assert.Equal(t, []crawler.Event{crawler.LinkResult(seed, ok200)}, events)
	checker.AssertNotCalled(t, "CheckStatus", mock.Anything, pageA)
	checker.AssertNotCalled(t, "CheckStatus", mock.Anything, pageB)
}

func TestEngineStream(t *testing.T) {
	engine, expander, checker := newTestEngine(3)

	expander.On("ExpandLinks", mock.Anything, seed, mock.Anything, domain).Return(mocks.Links(pageA))
	expander.On("ExpandLinks", mock.Anything, pageA, mock.Anything, domain).Return(nil)
	checker.On("CheckStatus", mock.Anything, mock.Anything).Return(ok200)

	var events []crawler.Event
	for evt := range engine.Stream(context.Background(), seed) {
		events = append(events, evt)
	}

	assert.Equal(t, []crawler.Event{
		crawler.LinkResult(seed, ok200),
		crawler.LinkResult(pageA, ok200),
		crawler.CrawlEnd(2),
	}, events)
}

func TestEngineStreamClosesOnCancellation(t *testing.T) {
	engine, expander, checker := newTestEngine(3)
	ctx, cancel := context.WithCancel(context.Background())

	expander.On("ExpandLinks", mock.Anything, mock.Anything, mock.Anything, domain).Return(mocks.Links(pageA, pageB))
	checker.On("CheckStatus", mock.Anything, mock.Anything).Return(ok200)

	events := engine.Stream(ctx, seed)
	first, open := <-events
	require.True(t, open)
	assert.Equal(t, seed, first.URL)

	cancel()
	for evt := range events {
		assert.NotEqual(t, crawler.EventCrawlEnd, evt.Kind)
	}
}

func TestEngineIndependentCrawls(t *testing.T) {
	engine, expander, checker := newTestEngine(1)

	expander.On("ExpandLinks", mock.Anything, seed, mock.Anything, domain).Return(mocks.Links(pageA))
	checker.On("CheckStatus", mock.Anything, mock.Anything).Return(ok200)

	first := collect(t, engine, context.Background(), seed)
	second := collect(t, engine, context.Background(), seed)

	assert.Equal(t, first, second)
	assert.Equal(t, crawler.CrawlEnd(2), second[len(second)-1])
}
