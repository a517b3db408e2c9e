package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jensneuse/abstractlogger"

	"github.com/hanpama/gqlforge/internal/blueprint"
	"github.com/hanpama/gqlforge/internal/cache"
	"github.com/hanpama/gqlforge/internal/config"
	"github.com/hanpama/gqlforge/internal/engine"
	"github.com/hanpama/gqlforge/internal/eventbus"
	"github.com/hanpama/gqlforge/internal/executor"
	"github.com/hanpama/gqlforge/internal/extension"
	"github.com/hanpama/gqlforge/internal/graphqlio"
	"github.com/hanpama/gqlforge/internal/grpcio"
	"github.com/hanpama/gqlforge/internal/httpio"
	"github.com/hanpama/gqlforge/internal/logging"
	"github.com/hanpama/gqlforge/internal/otel"
	"github.com/hanpama/gqlforge/internal/protoreg"
	"github.com/hanpama/gqlforge/internal/server"
	"github.com/hanpama/gqlforge/internal/upstream"
)

const rootUsage = `gqlforge - GraphQL composition over HTTP, gRPC and GraphQL upstreams

USAGE:
  gqlforge <command> [flags]

COMMANDS:
  serve    Run the GraphQL server
  check    Compile the configuration and report violations
  sdl      Print the compiled schema as SDL
  proto    Print the linked protobuf files
  help     Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>                      Configuration file, YAML or JSON. Repeatable; files are merged
  -addr <addr>                        HTTP listen address (default: :<server.port>, or :8000)
  -pretty                             Pretty-print JSON responses
  -max-body <bytes>                   Request body limit (default: 1MiB)
  -cors <origin>                      Allowed CORS origin. Repeatable
  -concurrency N                      Upstream calls run at once per wave, 0 is unbounded
  -transport.backend <Svc=host:port>  Route a gRPC service to an endpoint. Repeatable.
                                      Overrides the target from upstream.baseURL
  -transport.max-conns-per-endpoint N Max gRPC conns per endpoint (default: 2)
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: gqlforge)
  -log.level <level>                  debug, info, warn or error (default: info)
  -log.dev                            Human readable development logs
`

const checkUsage = `check FLAGS:
  -config <file>  Configuration file. Repeatable
  (Exits non-zero when the configuration has violations)
`

const sdlUsage = `sdl FLAGS:
  -config <file>  Configuration file. Repeatable
  -out <file>     Write SDL to file (default: stdout)
`

const protoUsage = `proto FLAGS:
  -config <file>  Configuration file. Repeatable
  -out <file>     Write .proto source to file (default: stdout)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}
	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "check":
		return cmdCheck(cmdArgs, os.Stdout)
	case "sdl":
		return cmdSDL(cmdArgs, os.Stdout)
	case "proto":
		return cmdProto(cmdArgs, os.Stdout)
	case "help", "-h", "-help", "--help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "check":
		fmt.Print(checkUsage)
	case "sdl":
		fmt.Print(sdlUsage)
	case "proto":
		fmt.Print(protoUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type backendFlag struct {
	m map[string][]string
}

func (b *backendFlag) String() string { return "" }

func (b *backendFlag) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid backend %q", v)
	}
	svc := strings.TrimSpace(parts[0])
	ep := strings.TrimSpace(parts[1])
	if svc == "" || ep == "" {
		return fmt.Errorf("invalid backend %q", v)
	}
	if b.m == nil {
		b.m = map[string][]string{}
	}
	b.m[svc] = append(b.m[svc], ep)
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// project is a loaded configuration with its protobuf links resolved.
type project struct {
	cfg        *config.Config
	protos     *protoreg.Registry
	extensions *extension.Registry
}

func load(ctx context.Context, paths []string) (*project, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("-config is required")
	}
	cfg, err := config.LoadFiles(paths...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	reg, err := protoreg.Load(ctx, cfg.LinksOf(config.LinkProtobuf))
	if err != nil {
		return nil, fmt.Errorf("load protobuf links: %w", err)
	}
	return &project{cfg: cfg, protos: reg, extensions: builtinExtensions()}, nil
}

func (p *project) compile() (*blueprint.Blueprint, error) {
	return blueprint.Compile(p.cfg,
		blueprint.WithMethods(p.protos),
		blueprint.WithExtensions(p.extensions),
	)
}

func configFlags(name string) (*flag.FlagSet, *stringListFlag) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	var paths stringListFlag
	fs.Var(&paths, "config", "Configuration file")
	return fs, &paths
}

func cmdServe(args []string) error {
	addr := ""
	pretty := false
	maxBody := int64(1 << 20)
	concurrency := 0
	maxConns := 2
	otelEndpoint := ""
	otelService := "gqlforge"
	logLevel := "info"
	logDev := false
	var cors stringListFlag
	var bf backendFlag

	fs, paths := configFlags("serve")
	fs.StringVar(&addr, "addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "pretty", pretty, "Pretty-print JSON responses")
	fs.Int64Var(&maxBody, "max-body", maxBody, "Request body limit")
	fs.Var(&cors, "cors", "Allowed CORS origin")
	fs.IntVar(&concurrency, "concurrency", concurrency, "Upstream calls per wave")
	fs.Var(&bf, "transport.backend", "Route a gRPC service to an endpoint")
	fs.IntVar(&maxConns, "transport.max-conns-per-endpoint", maxConns, "Max conns per endpoint")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	fs.StringVar(&logLevel, "log.level", logLevel, "Log level")
	fs.BoolVar(&logDev, "log.dev", logDev, "Development logs")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	logger, flush, err := logging.New(logLevel, logDev)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proj, err := load(ctx, *paths)
	if err != nil {
		return err
	}
	bp, err := proj.compile()
	if err != nil {
		return err
	}

	bus := eventbus.New()
	shutdown, err := otel.Setup(ctx, bus, otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	grpcT := grpcio.New(bus, grpcOptions(bp.Upstream, maxConns, bf.m)...)
	defer grpcT.Close()

	httpc := httpio.New(httpio.NewHTTPClient(bp.Upstream.Timeout), bus)
	responses, err := cache.New(bp.Upstream.CacheSize)
	if err != nil {
		return err
	}
	eng, err := engine.New(bp, upstream.Transports{
		HTTP:      httpc,
		GRPC:      grpcT,
		GraphQL:   graphqlio.New(httpc),
		Extension: proj.extensions,
	},
		engine.WithBus(bus),
		engine.WithLogger(logger),
		engine.WithExecutor(executor.WithCache(responses), executor.WithConcurrency(concurrency)),
	)
	if err != nil {
		return err
	}

	sopts := []server.Option{
		server.WithBus(bus),
		server.WithLogger(logger),
		server.WithMaxBodyBytes(maxBody),
		server.WithGraphiQL(bp.Server.GraphiQL),
	}
	if bp.Server.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(bp.Server.Timeout))
	}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(cors) > 0 {
		sopts = append(sopts, server.WithCORS(cors...))
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", server.New(eng, sopts...))

	if addr == "" {
		port := proj.cfg.Server.Port
		if port == 0 {
			port = 8000
		}
		addr = fmt.Sprintf(":%d", port)
	}
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("graphql server listening",
		abstractlogger.String("addr", addr),
		abstractlogger.Int("types", len(bp.Types)),
	)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func grpcOptions(up blueprint.Upstream, maxConns int, backends map[string][]string) []grpcio.Option {
	opts := []grpcio.Option{
		grpcio.WithMaxConnsPerEndpoint(maxConns),
		grpcio.WithUserAgent("gqlforge"),
	}
	if up.Timeout > 0 {
		opts = append(opts, grpcio.WithRPCTimeout(up.Timeout))
	}
	if len(backends) > 0 {
		opts = append(opts, grpcio.WithProvider(grpcio.NewStaticEndpoints(backends)))
	}
	return opts
}

func cmdCheck(args []string, w io.Writer) error {
	fs, paths := configFlags("check")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, checkUsage)
		return err
	}
	proj, err := load(context.Background(), *paths)
	if err != nil {
		return err
	}
	bp, err := proj.compile()
	var verr blueprint.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr {
			fmt.Fprintf(w, "%s\n", v)
		}
		return fmt.Errorf("%d violation(s) found", len(verr))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "ok: %d types\n", len(bp.Types))
	return nil
}

func cmdSDL(args []string, w io.Writer) error {
	fs, paths := configFlags("sdl")
	out := ""
	fs.StringVar(&out, "out", out, "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, sdlUsage)
		return err
	}
	proj, err := load(context.Background(), *paths)
	if err != nil {
		return err
	}
	bp, err := proj.compile()
	if err != nil {
		return err
	}
	sdl := blueprint.Render(bp)
	if out == "" {
		_, err := io.WriteString(w, sdl)
		return err
	}
	return os.WriteFile(out, []byte(sdl), 0644)
}

func cmdProto(args []string, w io.Writer) error {
	fs, paths := configFlags("proto")
	out := ""
	fs.StringVar(&out, "out", out, "Write .proto source to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, protoUsage)
		return err
	}
	proj, err := load(context.Background(), *paths)
	if err != nil {
		return err
	}
	if out == "" {
		return protoreg.Render(proj.protos, w)
	}
	var buf bytes.Buffer
	if err := protoreg.Render(proj.protos, &buf); err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	return os.WriteFile(out, buf.Bytes(), 0644)
}
