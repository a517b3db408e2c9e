// Package reqid attaches a request ID to a context. IDs are random UUIDs,
// or the value of an incoming X-Request-ID header when the caller supplies
// one.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header that carries request IDs.
const Header = "X-Request-ID"

type key struct{}

// NewContext returns a copy of parent with a new random request ID stored.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, string) {
	return WithID(parent, uuid.NewString())
}

// WithID stores id in a copy of parent.
func WithID(parent context.Context, id string) (context.Context, string) {
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID from ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}
