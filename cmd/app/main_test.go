package main

import (
	"reflect"
	"testing"
)

func TestParseOTLPHeaders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"whitespace", "   ", map[string]string{}},
		{"single", "authorization=Bearer abc", map[string]string{"authorization": "Bearer abc"}},
		{
			"multiple with padding",
			" x-team = links , x-env=prod ",
			map[string]string{"x-team": "links", "x-env": "prod"},
		},
		{"value containing equals", "token=a=b", map[string]string{"token": "a=b"}},
		{"skips malformed pairs", "novalue,,=orphan,ok=1", map[string]string{"ok": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseOTLPHeaders(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseOTLPHeaders(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
