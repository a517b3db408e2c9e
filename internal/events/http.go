package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when an HTTP request is received.
// Context carries the request context.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted after the handler completes.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}

// UpstreamStart is emitted before an HTTP or GraphQL upstream call. Call
// pairs it with the matching finish event.
type UpstreamStart struct {
	Call   uint64
	Kind   string
	Method string
	URL    string
}

// UpstreamFinish is emitted after an HTTP or GraphQL upstream call.
type UpstreamFinish struct {
	Call     uint64
	Kind     string
	Method   string
	URL      string
	Status   int
	Err      error
	Duration time.Duration
}
