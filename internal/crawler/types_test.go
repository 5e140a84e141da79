package crawler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkStatusString(t *testing.T) {
	tests := []struct {
		name     string
		status   LinkStatus
		expected string
	}{
		{"ok", StatusCode(200), "200"},
		{"not_found", StatusCode(404), "404"},
		{"timeout", TimeoutStatus(), "Error: Timeout"},
		{"connection_default", ConnectionErrorStatus(""), "Error: ConnectionError"},
		{"ssl", ConnectionErrorStatus("SSLError"), "Error: SSLError"},
		{"unexpected", UnexpectedErrorStatus("*errors.errorString"), "Error: Unexpected (*errors.errorString)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

func TestLinkStatusFollowable(t *testing.T) {
	assert.True(t, StatusCode(200).Followable())
	assert.True(t, StatusCode(301).Followable())
	assert.True(t, StatusCode(399).Followable())
	assert.False(t, StatusCode(400).Followable())
	assert.False(t, StatusCode(503).Followable())
	assert.False(t, TimeoutStatus().Followable())
	assert.False(t, ConnectionErrorStatus("").Followable())
	assert.False(t, UnexpectedErrorStatus("x").Followable())
}

func TestLinkStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusCode(204).Class())
	assert.Equal(t, "3xx", StatusCode(308).Class())
	assert.Equal(t, "4xx", StatusCode(410).Class())
	assert.Equal(t, "5xx", StatusCode(502).Class())
	assert.Equal(t, "1xx", StatusCode(100).Class())
	assert.Equal(t, "timeout", TimeoutStatus().Class())
	assert.Equal(t, "connection_error", ConnectionErrorStatus("SSLError").Class())
	assert.Equal(t, "unexpected_error", UnexpectedErrorStatus("x").Class())
}

func TestLinkStatusJSON(t *testing.T) {
	b, err := json.Marshal(StatusCode(200))
	require.NoError(t, err)
	assert.Equal(t, `200`, string(b))

	b, err = json.Marshal(TimeoutStatus())
	require.NoError(t, err)
	assert.Equal(t, `"Error: Timeout"`, string(b))
}

func TestEventConstructors(t *testing.T) {
	link := LinkResult("https://example.com", StatusCode(200))
	assert.Equal(t, EventLinkResult, link.Kind)
	assert.False(t, link.Terminal())
	assert.Equal(t, "link", link.Kind.String())

	start := StartError("bad", InvalidStartReason)
	assert.True(t, start.Terminal())
	assert.Equal(t, "error", start.Kind.String())

	end := CrawlEnd(7)
	assert.True(t, end.Terminal())
	assert.Equal(t, 7, end.Count)
	assert.Equal(t, "end", end.Kind.String())
}

func TestSeenSet(t *testing.T) {
	seen := make(SeenSet)
	assert.False(t, seen.Has("https://example.com"))
	assert.True(t, seen.Add("https://example.com"))
	assert.False(t, seen.Add("https://example.com"))
	assert.True(t, seen.Has("https://example.com"))
	assert.Len(t, seen, 1)
}
