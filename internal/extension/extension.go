// Package extension hosts in-process resolvers. An Extension link names
// the library; the registry maps that name to Go code compiled into the
// binary.
package extension

import (
	"context"
	"fmt"
	"sync"

	"github.com/hanpama/gqlforge/internal/upstream"
)

// Func resolves one call. params is the rendered operator payload and
// value the parent value of the field.
type Func func(ctx context.Context, params, value any) (any, error)

// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds fn under name, replacing any earlier registration.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

var _ upstream.ExtensionTransport = (*Registry)(nil)

func (r *Registry) Invoke(ctx context.Context, req *upstream.ExtensionRequest) (any, error) {
	r.mu.RLock()
	fn, ok := r.funcs[req.Library]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("extension %q is not registered", req.Library)
	}
	return fn(ctx, req.Params, req.Value)
}
