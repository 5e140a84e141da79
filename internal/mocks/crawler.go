package mocks

import (
	"context"

	"github.com/Harvey-AU/linkstream/internal/crawler"
	"github.com/stretchr/testify/mock"
)

// MockLinkExpander is a mock implementation of crawler.LinkExpander
type MockLinkExpander struct {
	mock.Mock
}

// ExpandLinks mocks the ExpandLinks method
func (m *MockLinkExpander) ExpandLinks(ctx context.Context, pageURL string, seen crawler.SeenSet, domain string) map[string]struct{} {
	args := m.Called(ctx, pageURL, seen, domain)

	if args.Get(0) == nil {
		return map[string]struct{}{}
	}

	return args.Get(0).(map[string]struct{})
}

// MockStatusChecker is a mock implementation of crawler.StatusChecker
type MockStatusChecker struct {
	mock.Mock
}

// CheckStatus mocks the CheckStatus method
func (m *MockStatusChecker) CheckStatus(ctx context.Context, url string) crawler.LinkStatus {
	args := m.Called(ctx, url)
	return args.Get(0).(crawler.LinkStatus)
}

// Links builds the set returned by a mocked ExpandLinks call.
func Links(urls ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set
}
