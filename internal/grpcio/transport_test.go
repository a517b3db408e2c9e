package grpcio_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/gqlforge/internal/config"
	"github.com/hanpama/gqlforge/internal/eventbus"
	"github.com/hanpama/gqlforge/internal/events"
	"github.com/hanpama/gqlforge/internal/grpcio"
	"github.com/hanpama/gqlforge/internal/protoreg"
	"github.com/hanpama/gqlforge/internal/upstream"
)

const newsProto = `syntax = "proto3";
package news;

message NewsId { int32 id = 1; }
message News {
  int32 id = 1;
  string title = 2;
  string body = 3;
}

service NewsService {
  rpc GetNews (NewsId) returns (News);
}
`

func loadMethod(t *testing.T) protoreflect.MethodDescriptor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "news.proto")
	require.NoError(t, os.WriteFile(path, []byte(newsProto), 0o644))
	reg, err := protoreg.Load(context.Background(), []config.Link{{Type: config.LinkProtobuf, Src: path}})
	require.NoError(t, err)
	md, err := reg.FindMethod("news.NewsService.GetNews")
	require.NoError(t, err)
	return md
}

// serve answers GetNews by echoing the requested id. Id 99 never answers.
func serve(t *testing.T, md protoreflect.MethodDescriptor, seen chan<- metadata.MD) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		if method != "/news.NewsService/GetNews" {
			return status.Errorf(codes.Unimplemented, "unknown method %s", method)
		}
		in := dynamicpb.NewMessage(md.Input())
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		if seen != nil {
			incoming, _ := metadata.FromIncomingContext(stream.Context())
			seen <- incoming
		}
		id := in.Get(md.Input().Fields().ByName("id")).Int()
		if id == 99 {
			<-stream.Context().Done()
			return status.FromContextError(stream.Context().Err()).Err()
		}
		if id == 0 {
			return status.Error(codes.NotFound, "news not found")
		}
		out := dynamicpb.NewMessage(md.Output())
		out.Set(md.Output().Fields().ByName("id"), protoreflect.ValueOfInt32(int32(id)))
		out.Set(md.Output().Fields().ByName("title"), protoreflect.ValueOfString("Note"))
		return stream.SendMsg(out)
	}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return "http://" + lis.Addr().String()
}

func TestCall(t *testing.T) {
	md := loadMethod(t)
	seen := make(chan metadata.MD, 1)
	target := serve(t, md, seen)

	bus := eventbus.New()
	var finished events.GRPCClientFinish
	eventbus.Subscribe(bus, func(_ context.Context, e events.GRPCClientFinish) { finished = e })

	tr := grpcio.New(bus)
	got, err := tr.Call(context.Background(), &upstream.GRPCRequest{
		Target:  target,
		Method:  md,
		Body:    []byte(`{"id": 2}`),
		Headers: map[string]string{"X-Tenant": "acme"},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": float64(2), "title": "Note", "body": ""}, got)
	require.Equal(t, []string{"acme"}, (<-seen).Get("x-tenant"))
	require.Equal(t, codes.OK, finished.Code)
	require.Equal(t, "news.NewsService", finished.Service)
	require.NoError(t, tr.Close())
}

func TestCallError(t *testing.T) {
	md := loadMethod(t)
	target := serve(t, md, nil)

	tr := grpcio.New(nil)
	defer tr.Close()
	_, err := tr.Call(context.Background(), &upstream.GRPCRequest{Target: target, Method: md})
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = tr.Call(context.Background(), &upstream.GRPCRequest{Target: target, Method: md, Body: []byte(`{"id": "x"}`)})
	require.ErrorContains(t, err, "encode /news.NewsService/GetNews request")
}

func TestRPCTimeout(t *testing.T) {
	md := loadMethod(t)
	target := serve(t, md, nil)

	tr := grpcio.New(nil, grpcio.WithRPCTimeout(50*time.Millisecond))
	defer tr.Close()
	start := time.Now()
	_, err := tr.Call(context.Background(), &upstream.GRPCRequest{Target: target, Method: md, Body: []byte(`{"id": 99}`)})
	require.Equal(t, codes.DeadlineExceeded, status.Code(err))
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestUserAgent(t *testing.T) {
	md := loadMethod(t)
	seen := make(chan metadata.MD, 1)
	target := serve(t, md, seen)

	tr := grpcio.New(nil, grpcio.WithUserAgent("gqlforge-test"))
	defer tr.Close()
	_, err := tr.Call(context.Background(), &upstream.GRPCRequest{Target: target, Method: md, Body: []byte(`{"id": 1}`)})
	require.NoError(t, err)
	ua := (<-seen).Get("user-agent")
	require.Len(t, ua, 1)
	require.Contains(t, ua[0], "gqlforge-test")
}

func TestProviderOverridesTarget(t *testing.T) {
	md := loadMethod(t)
	target := serve(t, md, nil)
	addr, err := grpcio.Target(target)
	require.NoError(t, err)

	tr := grpcio.New(nil, grpcio.WithProvider(grpcio.NewStaticEndpoints(map[string][]string{
		"news.NewsService": {addr},
	})))
	defer tr.Close()
	got, err := tr.Call(context.Background(), &upstream.GRPCRequest{Target: "http://unused:1", Method: md, Body: []byte(`{"id": 5}`)})
	require.NoError(t, err)
	require.Equal(t, float64(5), got.(map[string]any)["id"])
}

func TestTarget(t *testing.T) {
	for in, want := range map[string]string{
		"http://localhost:50051": "localhost:50051",
		"localhost:50051":        "localhost:50051",
		"dns:///svc:80":          "dns:///svc:80",
	} {
		got, err := grpcio.Target(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
	_, err := grpcio.Target("")
	require.Error(t, err)
}

func TestStaticEndpoints(t *testing.T) {
	p := grpcio.NewStaticEndpoints(map[string][]string{"a.S": {"h:1"}})
	got, err := p.Endpoints(context.Background(), "a.S")
	require.NoError(t, err)
	require.Equal(t, []string{"h:1"}, got)
	_, err = p.Endpoints(context.Background(), "b.S")
	require.ErrorIs(t, err, grpcio.ErrNoEndpoints)
}
