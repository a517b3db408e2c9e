package executor

import (
	"context"
	"net/http"
	"sync"

	"github.com/hanpama/gqlforge/internal/upstream"
)

// MockResolver answers one upstream request in tests.
type MockResolver func(ctx context.Context, req upstream.Request) (any, error)

// MockValues answers HTTP requests by URL. Unknown URLs fail with 404.
func MockValues(byURL map[string]any) MockResolver {
	return func(_ context.Context, req upstream.Request) (any, error) {
		r, ok := req.(*upstream.HTTPRequest)
		if !ok {
			return nil, &upstream.StatusError{Status: http.StatusNotImplemented}
		}
		v, ok := byURL[r.URL]
		if !ok {
			return nil, &upstream.StatusError{URL: r.URL, Status: http.StatusNotFound}
		}
		if err, ok := v.(error); ok {
			return nil, err
		}
		return v, nil
	}
}

// MockTransport serves every IO kind from one resolver and records each
// request it receives, in arrival order.
type MockTransport struct {
	resolve MockResolver

	mu    sync.Mutex
	calls []upstream.Request
}

func NewMockTransport(resolve MockResolver) *MockTransport {
	return &MockTransport{resolve: resolve}
}

// Transports returns m wired for every kind.
func (m *MockTransport) Transports() upstream.Transports {
	return upstream.Transports{HTTP: m, GRPC: m, GraphQL: m, Extension: m}
}

// Calls returns a copy of the recorded requests.
func (m *MockTransport) Calls() []upstream.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]upstream.Request(nil), m.calls...)
}

// URLs returns the URLs of recorded HTTP requests.
func (m *MockTransport) URLs() []string {
	var out []string
	for _, c := range m.Calls() {
		if r, ok := c.(*upstream.HTTPRequest); ok {
			out = append(out, r.URL)
		}
	}
	return out
}

func (m *MockTransport) record(ctx context.Context, req upstream.Request) (any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return m.resolve(ctx, req)
}

func (m *MockTransport) Do(ctx context.Context, req *upstream.HTTPRequest) (any, error) {
	return m.record(ctx, req)
}

func (m *MockTransport) Call(ctx context.Context, req *upstream.GRPCRequest) (any, error) {
	return m.record(ctx, req)
}

func (m *MockTransport) Query(ctx context.Context, req *upstream.GraphQLRequest) (any, error) {
	return m.record(ctx, req)
}

func (m *MockTransport) Invoke(ctx context.Context, req *upstream.ExtensionRequest) (any, error) {
	return m.record(ctx, req)
}
