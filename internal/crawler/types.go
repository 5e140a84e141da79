package crawler

import (
	"encoding/json"
	"strconv"
)

// FailureKind classifies a status check that produced no HTTP response.
type FailureKind int

const (
	// FailureNone means the check received an HTTP response.
	FailureNone FailureKind = iota
	// FailureTimeout means the check exceeded its timeout.
	FailureTimeout
	// FailureConnection covers transport-level failures (DNS, refused, TLS, redirects).
	FailureConnection
	// FailureUnexpected covers anything the checker could not classify.
	FailureUnexpected
)

// LinkStatus is the outcome of a single status check: either an HTTP status
// code or a classified failure. It is produced once per URL and never mutated.
type LinkStatus struct {
	Code    int
	Failure FailureKind
	Detail  string // failure kind name, e.g. "ConnectionError" or "SSLError"
}

// StatusCode wraps a numeric HTTP status.
func StatusCode(code int) LinkStatus {
	return LinkStatus{Code: code}
}

// TimeoutStatus is the status recorded when a check times out.
func TimeoutStatus() LinkStatus {
	return LinkStatus{Failure: FailureTimeout, Detail: "Timeout"}
}

// ConnectionErrorStatus records a transport failure of the given kind.
func ConnectionErrorStatus(detail string) LinkStatus {
	if detail == "" {
		detail = "ConnectionError"
	}
	return LinkStatus{Failure: FailureConnection, Detail: detail}
}

// UnexpectedErrorStatus records a failure the checker could not classify.
func UnexpectedErrorStatus(detail string) LinkStatus {
	return LinkStatus{Failure: FailureUnexpected, Detail: detail}
}

// IsFailure reports whether the check produced no HTTP response.
func (s LinkStatus) IsFailure() bool {
	return s.Failure != FailureNone
}

// Followable reports whether a link with this status may be expanded further.
func (s LinkStatus) Followable() bool {
	return s.Failure == FailureNone && s.Code < 400
}

// String renders the status the way it appears on the wire.
func (s LinkStatus) String() string {
	switch s.Failure {
	case FailureNone:
		return strconv.Itoa(s.Code)
	case FailureTimeout:
		return "Error: Timeout"
	case FailureConnection:
		return "Error: " + s.Detail
	default:
		return "Error: Unexpected (" + s.Detail + ")"
	}
}

// Class buckets the status for metrics and reports.
func (s LinkStatus) Class() string {
	switch s.Failure {
	case FailureTimeout:
		return "timeout"
	case FailureConnection:
		return "connection_error"
	case FailureUnexpected:
		return "unexpected_error"
	}
	switch {
	case s.Code >= 500:
		return "5xx"
	case s.Code >= 400:
		return "4xx"
	case s.Code >= 300:
		return "3xx"
	case s.Code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

// MarshalJSON encodes codes as JSON numbers and failures as strings.
func (s LinkStatus) MarshalJSON() ([]byte, error) {
	if s.Failure == FailureNone {
		return []byte(strconv.Itoa(s.Code)), nil
	}
	return json.Marshal(s.String())
}

// EventKind identifies the variant carried by an Event.
type EventKind int

const (
	// EventLinkResult carries the status of one discovered link.
	EventLinkResult EventKind = iota
	// EventStartError is the only event of a crawl whose seed was unusable.
	EventStartError
	// EventCrawlEnd is always the last event of a successful crawl.
	EventCrawlEnd
)

func (k EventKind) String() string {
	switch k {
	case EventLinkResult:
		return "link"
	case EventStartError:
		return "error"
	case EventCrawlEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is one item of a crawl's output sequence.
type Event struct {
	Kind   EventKind
	URL    string
	Status LinkStatus // EventLinkResult only
	Reason string     // EventStartError only
	Count  int        // EventCrawlEnd only
}

// LinkResult builds the event emitted for each checked link.
func LinkResult(url string, status LinkStatus) Event {
	return Event{Kind: EventLinkResult, URL: url, Status: status}
}

// StartError builds the terminal event for an unusable seed.
func StartError(url, reason string) Event {
	return Event{Kind: EventStartError, URL: url, Reason: reason}
}

// CrawlEnd builds the terminal event carrying the number of URLs seen.
func CrawlEnd(count int) Event {
	return Event{Kind: EventCrawlEnd, Count: count}
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Kind == EventStartError || e.Kind == EventCrawlEnd
}

// SeenSet holds every URL already committed to processing in one crawl.
type SeenSet map[string]struct{}

// Has reports whether url was already seen.
func (s SeenSet) Has(url string) bool {
	_, ok := s[url]
	return ok
}

// Add inserts url and reports whether it was new.
func (s SeenSet) Add(url string) bool {
	if _, ok := s[url]; ok {
		return false
	}
	s[url] = struct{}{}
	return true
}
