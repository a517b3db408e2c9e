// Package upstream defines the rendered requests the executor hands to
// transports, and the transport interfaces themselves. Requests are plain
// data so that identical calls can be recognized and coalesced.
package upstream

import (
	"context"
	"encoding/binary"
	"net/http"
	"sort"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Request is a fully rendered upstream call.
type Request interface {
	// Key identifies the call. Requests with equal keys are interchangeable.
	Key() uint64
}

type HTTPRequest struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// GRPCRequest calls a unary method with a protojson encoded body.
type GRPCRequest struct {
	Target  string
	Method  protoreflect.MethodDescriptor
	Body    []byte
	Headers map[string]string
}

// GraphQLRequest selects Field from the data of an upstream response.
type GraphQLRequest struct {
	URL     string
	Query   string
	Field   string
	Headers http.Header
}

// ExtensionRequest invokes an in-process extension.
type ExtensionRequest struct {
	Library string
	Params  any
	// Value is the parent value of the field being resolved.
	Value any
}

type HTTPTransport interface {
	Do(ctx context.Context, req *HTTPRequest) (any, error)
}

type GRPCTransport interface {
	Call(ctx context.Context, req *GRPCRequest) (any, error)
}

type GraphQLTransport interface {
	Query(ctx context.Context, req *GraphQLRequest) (any, error)
}

type ExtensionTransport interface {
	Invoke(ctx context.Context, req *ExtensionRequest) (any, error)
}

// Transports bundles one transport per IO kind. A nil member makes calls
// of that kind fail.
type Transports struct {
	HTTP      HTTPTransport
	GRPC      GRPCTransport
	GraphQL   GraphQLTransport
	Extension ExtensionTransport
}

type hasher struct {
	d *xxhash.Digest
}

func newHasher(kind string) hasher {
	h := hasher{d: xxhash.New()}
	h.str(kind)
	return h
}

// str writes a length-prefixed string so that adjacent fields cannot run
// together.
func (h hasher) str(s string) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
	_, _ = h.d.Write(n[:])
	_, _ = h.d.WriteString(s)
}

func (h hasher) bytes(b []byte) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
	_, _ = h.d.Write(n[:])
	_, _ = h.d.Write(b)
}

func (h hasher) header(hdr http.Header) {
	keys := make([]string, 0, len(hdr))
	for k := range hdr {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.str(k)
		for _, v := range hdr[k] {
			h.str(v)
		}
	}
}

func (r *HTTPRequest) Key() uint64 {
	h := newHasher("http")
	h.str(r.Method)
	h.str(r.URL)
	h.header(r.Headers)
	h.bytes(r.Body)
	return h.d.Sum64()
}

func (r *GRPCRequest) Key() uint64 {
	h := newHasher("grpc")
	h.str(r.Target)
	if r.Method != nil {
		h.str(string(r.Method.FullName()))
	}
	h.bytes(r.Body)
	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.str(k)
		h.str(r.Headers[k])
	}
	return h.d.Sum64()
}

func (r *GraphQLRequest) Key() uint64 {
	h := newHasher("graphql")
	h.str(r.URL)
	h.str(r.Query)
	h.str(r.Field)
	h.header(r.Headers)
	return h.d.Sum64()
}

// Key hashes the library with the canonical JSON forms of Params and Value.
func (r *ExtensionRequest) Key() uint64 {
	h := newHasher("extension")
	h.str(r.Library)
	h.str(canonical(r.Params))
	h.str(canonical(r.Value))
	return h.d.Sum64()
}
