package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Harvey-AU/linkstream/internal/crawler"
)

// ErrStreamingUnsupported is returned when the response cannot be flushed.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Writer writes SSE frames to an HTTP response, flushing after each one so
// the client sees every event as soon as it is produced.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for an event stream. It sets the SSE headers but does
// not write the status line.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent writes and flushes one event frame.
func (sw *Writer) WriteEvent(evt crawler.Event) error {
	return sw.write(Encode(evt))
}

// WriteMissingURL writes and flushes the missing start URL error frame.
func (sw *Writer) WriteMissingURL() error {
	return sw.write(EncodeMissingURL())
}

// WriteKeepalive writes a comment frame that keeps idle proxies from closing
// the connection.
func (sw *Writer) WriteKeepalive() error {
	return sw.write(EncodeComment("keepalive"))
}

func (sw *Writer) write(b []byte) error {
	if _, err := sw.w.Write(b); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// Pipe writes events until the channel is closed or ctx is done, sending a
// keepalive whenever heartbeat elapses without an event. A zero heartbeat
// disables keepalives. It returns the number of events written.
func (sw *Writer) Pipe(ctx context.Context, events <-chan crawler.Event, heartbeat time.Duration) (int, error) {
	var tick <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	written := 0
	for {
		select {
		case evt, open := <-events:
			if !open {
				return written, nil
			}
			if err := sw.WriteEvent(evt); err != nil {
				return written, err
			}
			written++
		case <-tick:
			if err := sw.WriteKeepalive(); err != nil {
				return written, err
			}
		case <-ctx.Done():
			return written, ctx.Err()
		}
	}
}
