package grpcio

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
)

// Options configures a Transport. The zero value of each field selects its
// default: two connections per endpoint and a 3s timeout for calls whose
// context carries no deadline.
//
// Provider is optional. When it knows endpoints for a service they take
// precedence over the target rendered from the operator's baseURL.
type Options struct {
	Provider            EndpointProvider
	MaxConnsPerEndpoint int
	RPCTimeout          time.Duration
	UserAgent           string
}

type Option func(*Options)

func WithProvider(p EndpointProvider) Option { return func(o *Options) { o.Provider = p } }
func WithMaxConnsPerEndpoint(n int) Option   { return func(o *Options) { o.MaxConnsPerEndpoint = n } }
func WithRPCTimeout(d time.Duration) Option  { return func(o *Options) { o.RPCTimeout = d } }
func WithUserAgent(ua string) Option         { return func(o *Options) { o.UserAgent = ua } }

func newOptions(opts []Option) *Options {
	o := &Options{}
	for _, f := range opts {
		f(o)
	}
	if o.MaxConnsPerEndpoint <= 0 {
		o.MaxConnsPerEndpoint = 2
	}
	if o.RPCTimeout <= 0 {
		o.RPCTimeout = 3 * time.Second
	}
	return o
}

// dialOptions are used for every connection. Upstreams are reached over
// plaintext.
func (o *Options) dialOptions() []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
	}
	if o.UserAgent != "" {
		opts = append(opts, grpc.WithUserAgent(o.UserAgent))
	}
	return opts
}
