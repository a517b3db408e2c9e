package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoTransport is returned for IO kinds without a configured transport.
var ErrNoTransport = errors.New("upstream: no transport configured")

// StatusError reports an upstream response with a non-success status.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream %s responded with status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("upstream %s responded with status %d: %s", e.URL, e.Status, e.Body)
}

// GraphQLError carries the errors array of an upstream GraphQL response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	return fmt.Sprintf("%d upstream errors, first: %s", len(e.Messages), e.Messages[0])
}

// canonical renders v as JSON with sorted object keys.
func canonical(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}
