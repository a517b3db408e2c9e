package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/gqlforge/internal/engine"
	"github.com/hanpama/gqlforge/internal/eventbus"
	"github.com/hanpama/gqlforge/internal/events"
	"github.com/hanpama/gqlforge/internal/jit"
	"github.com/hanpama/gqlforge/internal/reqid"
)

// Handler is an http.Handler that serves a GraphQL endpoint.
type Handler struct {
	engine *engine.Engine
	opt    Options
}

type Options struct {
	// Timeout applies when the incoming request context has no deadline.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses.
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS is disabled when AllowedOrigins is empty.
	CORS CORSOptions

	GraphiQL bool

	Bus    *eventbus.Bus
	Logger abstractlogger.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option        { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                        { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option           { return func(o *Options) { o.MaxBodyBytes = n } }
func WithGraphiQL(enable bool) Option           { return func(o *Options) { o.GraphiQL = enable } }
func WithBus(b *eventbus.Bus) Option            { return func(o *Options) { o.Bus = b } }
func WithLogger(l abstractlogger.Logger) Option { return func(o *Options) { o.Logger = l } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler running requests on e.
func New(e *engine.Engine, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, Logger: abstractlogger.NoopLogger}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{engine: e, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	var rid string
	if id := r.Header.Get(reqid.Header); id != "" {
		ctx, rid = reqid.WithID(ctx, id)
	} else {
		ctx, rid = reqid.NewContext(ctx)
	}
	w.Header().Set(reqid.Header, rid)

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, h.opt.Bus, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, h.opt.Bus, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		h.writeJSON(w, status, errorResponse("method not allowed"))
		return
	}

	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, graphiqlPage)
		return
	}

	req, batch, err := parseRequest(r, h.opt.MaxBodyBytes)
	if err != nil {
		h.opt.Logger.Debug("decode request",
			abstractlogger.String("request_id", rid),
			abstractlogger.Error(err),
		)
		status = http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.writeJSON(w, status, errorResponse(err.Error()))
		return
	}

	if batch != nil {
		out := make([]*engine.Response, len(batch))
		for i := range batch {
			out[i] = h.executeOne(ctx, batch[i], r.Header)
		}
		h.writeJSON(w, status, out)
		return
	}
	h.writeJSON(w, status, h.executeOne(ctx, req, r.Header))
}

func (h *Handler) executeOne(ctx context.Context, req *jit.Request, header http.Header) *engine.Response {
	start := time.Now()
	eventbus.Publish(ctx, h.opt.Bus, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName})
	res := h.engine.Execute(ctx, req, header)
	errs := make([]error, len(res.Errors))
	for i := range res.Errors {
		errs[i] = res.Errors[i]
	}
	eventbus.Publish(ctx, h.opt.Bus, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: res.Operation,
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return res
}

var (
	errBodyTooLarge = errors.New("body too large")
	errNoQuery      = errors.New("missing 'query'")
)

func parseRequest(r *http.Request, maxBody int64) (*jit.Request, []*jit.Request, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		if q.Get("query") == "" {
			return nil, nil, errNoQuery
		}
		req := &jit.Request{Query: q.Get("query"), OperationName: q.Get("operationName")}
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return nil, nil, errors.New("invalid 'variables' JSON")
			}
		}
		return req, nil, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return nil, nil, errors.New("unsupported Content-Type")
	}
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, errors.New("failed to read body")
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return nil, nil, errBodyTooLarge
	}

	body = []byte(strings.TrimSpace(string(body)))
	if len(body) > 0 && body[0] == '[' {
		var batch []*jit.Request
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, nil, errors.New("invalid JSON")
		}
		if len(batch) == 0 {
			return nil, nil, errors.New("empty batch")
		}
		for _, req := range batch {
			if req == nil || req.Query == "" {
				return nil, nil, errNoQuery
			}
		}
		return nil, batch, nil
	}
	var req jit.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, errors.New("invalid JSON")
	}
	if req.Query == "" {
		return nil, nil, errNoQuery
	}
	return &req, nil, nil
}

func errorResponse(message string) *engine.Response {
	return &engine.Response{Errors: gqlerror.List{{Message: message}}}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		h.opt.Logger.Error("write response", abstractlogger.Error(err))
	}
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard := false
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		if o == "*" || o == origin {
			allowed = true
		}
	}
	if !allowed {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func acceptsHTML(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") {
			return true
		}
	}
	return false
}
