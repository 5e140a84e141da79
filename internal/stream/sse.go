// Package stream renders crawl events as Server-Sent Events.
package stream

import (
	"bytes"
	"encoding/json"

	"github.com/Harvey-AU/linkstream/internal/crawler"
)

// MissingURLStatus is sent when a stream is requested without a start URL.
const MissingURLStatus = "Error: No URL provided."

type linkPayload struct {
	URL    string             `json:"url"`
	Status crawler.LinkStatus `json:"status"`
}

type startErrorPayload struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

type statusPayload struct {
	Status string `json:"status"`
}

type endPayload struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// Encode renders evt as a single SSE frame, including the blank line that
// terminates it.
func Encode(evt crawler.Event) []byte {
	switch evt.Kind {
	case crawler.EventStartError:
		return frame("error", startErrorPayload{URL: evt.URL, Status: evt.Reason})
	case crawler.EventCrawlEnd:
		return frame("end", endPayload{Status: "finished", Count: evt.Count})
	default:
		return frame("", linkPayload{URL: evt.URL, Status: evt.Status})
	}
}

type jsonLine struct {
	Event  string `json:"event"`
	URL    string `json:"url,omitempty"`
	Status any    `json:"status"`
	Count  *int   `json:"count,omitempty"`
}

// EncodeJSON renders evt as one newline-terminated JSON object whose event
// field names the variant. It carries the same fields as the SSE data line.
func EncodeJSON(evt crawler.Event) []byte {
	line := jsonLine{Event: evt.Kind.String(), URL: evt.URL}
	switch evt.Kind {
	case crawler.EventStartError:
		line.Status = evt.Reason
	case crawler.EventCrawlEnd:
		count := evt.Count
		line.Status = "finished"
		line.Count = &count
	default:
		line.Status = evt.Status
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(line)
	return buf.Bytes()
}

// EncodeMissingURL renders the error frame for a request with no start URL.
func EncodeMissingURL() []byte {
	return frame("error", statusPayload{Status: MissingURLStatus})
}

// EncodeComment renders an SSE comment line; clients ignore it.
func EncodeComment(text string) []byte {
	return []byte(": " + text + "\n\n")
}

func frame(event string, payload any) []byte {
	var data bytes.Buffer
	enc := json.NewEncoder(&data)
	enc.SetEscapeHTML(false)
	// The payload types above cannot fail to encode.
	_ = enc.Encode(payload)

	var buf bytes.Buffer
	if event != "" {
		buf.WriteString("event: ")
		buf.WriteString(event)
		buf.WriteByte('\n')
	}
	buf.WriteString("data: ")
	buf.Write(bytes.TrimRight(data.Bytes(), "\n"))
	buf.WriteString("\n\n")
	return buf.Bytes()
}
