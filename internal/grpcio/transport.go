// Package grpcio calls unary gRPC methods described by runtime descriptors.
// Requests and responses cross the boundary as protojson so that the
// executor only ever sees JSON-like values.
package grpcio

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/gqlforge/internal/eventbus"
	"github.com/hanpama/gqlforge/internal/events"
	"github.com/hanpama/gqlforge/internal/upstream"
)

// Transport is a gRPC client with per-endpoint connection pooling and
// deadline propagation.
type Transport struct {
	opts *Options
	bus  *eventbus.Bus

	mu     sync.RWMutex
	pools  map[string]*connPool // key: endpoint
	closed atomic.Bool
}

func New(bus *eventbus.Bus, opts ...Option) *Transport {
	return &Transport{
		opts:  newOptions(opts),
		bus:   bus,
		pools: make(map[string]*connPool),
	}
}

var _ upstream.GRPCTransport = (*Transport)(nil)

// Call decodes req.Body into the method's input message, invokes the
// method and returns the output message as a JSON-like value.
func (t *Transport) Call(ctx context.Context, req *upstream.GRPCRequest) (out any, err error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("grpcio: closed")
	}
	md := req.Method
	service := string(md.Parent().FullName())
	fullMethod := fmt.Sprintf("/%s/%s", service, md.Name())

	request := dynamicpb.NewMessage(md.Input())
	if len(req.Body) > 0 {
		if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(req.Body, request); err != nil {
			return nil, fmt.Errorf("encode %s request: %w", fullMethod, err)
		}
	}

	if _, ok := ctx.Deadline(); !ok && t.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RPCTimeout)
		defer cancel()
	}
	if len(req.Headers) > 0 {
		kv := make([]string, 0, len(req.Headers)*2)
		for k, v := range req.Headers {
			kv = append(kv, strings.ToLower(k), v)
		}
		ctx = metadata.AppendToOutgoingContext(ctx, kv...)
	}

	endpoint, err := t.endpoint(ctx, service, req.Target)
	if err != nil {
		return nil, err
	}
	cc, err := t.getConn(endpoint)
	if err != nil {
		return nil, err
	}
	defer t.returnConn(endpoint, cc)

	call := t.bus.NextCall()
	start := time.Now()
	eventbus.Publish(ctx, t.bus, events.GRPCClientStart{Call: call, Service: service, Method: string(md.Name()), Target: endpoint})
	resp := dynamicpb.NewMessage(md.Output())
	err = cc.Invoke(ctx, fullMethod, request, resp)
	eventbus.Publish(ctx, t.bus, events.GRPCClientFinish{
		Call:     call,
		Service:  service,
		Method:   string(md.Name()),
		Target:   endpoint,
		Code:     status.Code(err),
		Err:      err,
		Duration: time.Since(start),
	})
	if err != nil {
		return nil, err
	}
	return decodeMessage(resp)
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pools {
		p.close()
	}
	t.pools = map[string]*connPool{}
	return nil
}

func (t *Transport) endpoint(ctx context.Context, service, target string) (string, error) {
	if t.opts.Provider != nil {
		endpoints, err := t.opts.Provider.Endpoints(ctx, service)
		if err == nil && len(endpoints) > 0 {
			return endpoints[rand.Intn(len(endpoints))], nil
		}
	}
	return Target(target)
}

// Target reduces a baseURL such as "http://localhost:50051" to the dial
// target "localhost:50051". Other gRPC target forms pass through.
func Target(base string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("grpcio: empty target")
	}
	for _, scheme := range []string{"http://", "https://", "grpc://"} {
		if !strings.HasPrefix(base, scheme) {
			continue
		}
		u, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("grpcio: invalid target %q: %w", base, err)
		}
		if u.Host == "" {
			return "", fmt.Errorf("grpcio: invalid target %q", base)
		}
		return u.Host, nil
	}
	return base, nil
}

func decodeMessage(msg protoreflect.ProtoMessage) (any, error) {
	data, err := (protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(msg)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type connPool struct {
	endpoint string
	opts     *Options
	conns    chan *grpc.ClientConn
	closed   atomic.Bool
}

func newConnPool(endpoint string, opts *Options) *connPool {
	n := opts.MaxConnsPerEndpoint
	if n <= 0 {
		n = 2
	}
	return &connPool{
		endpoint: endpoint,
		opts:     opts,
		conns:    make(chan *grpc.ClientConn, n),
	}
}

func (p *connPool) get() (*grpc.ClientConn, error) {
	if p.closed.Load() {
		return nil, fmt.Errorf("grpcio: pool closed")
	}
	select {
	case cc := <-p.conns:
		return cc, nil
	default:
		return grpc.NewClient(p.endpoint, p.opts.dialOptions()...)
	}
}

func (p *connPool) put(cc *grpc.ClientConn) {
	if cc == nil {
		return
	}
	if p.closed.Load() {
		_ = cc.Close()
		return
	}
	select {
	case p.conns <- cc:
	default:
		_ = cc.Close()
	}
}

func (p *connPool) close() {
	if p.closed.Swap(true) {
		return
	}
	for {
		select {
		case cc := <-p.conns:
			_ = cc.Close()
		default:
			return
		}
	}
}

func (t *Transport) getConn(endpoint string) (*grpc.ClientConn, error) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool == nil {
		t.mu.Lock()
		pool = t.pools[endpoint]
		if pool == nil {
			pool = newConnPool(endpoint, t.opts)
			t.pools[endpoint] = pool
		}
		t.mu.Unlock()
	}
	return pool.get()
}

func (t *Transport) returnConn(endpoint string, cc *grpc.ClientConn) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool != nil {
		pool.put(cc)
		return
	}
	_ = cc.Close()
}
