// Package engine runs GraphQL requests against a compiled Blueprint:
// plan (or reuse a cached plan), coerce variables, execute, synthesize.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/gqlforge/internal/blueprint"
	"github.com/hanpama/gqlforge/internal/eventbus"
	"github.com/hanpama/gqlforge/internal/events"
	"github.com/hanpama/gqlforge/internal/executor"
	"github.com/hanpama/gqlforge/internal/introspection"
	"github.com/hanpama/gqlforge/internal/jit"
	"github.com/hanpama/gqlforge/internal/language"
	"github.com/hanpama/gqlforge/internal/synth"
	"github.com/hanpama/gqlforge/internal/upstream"
)

type Option func(*Engine)

func WithBus(b *eventbus.Bus) Option              { return func(e *Engine) { e.bus = b } }
func WithLogger(l abstractlogger.Logger) Option   { return func(e *Engine) { e.log = l } }
func WithRules(rules ...jit.Rule) Option          { return func(e *Engine) { e.rules = append(e.rules, rules...) } }
func WithExecutor(opts ...executor.Option) Option { return func(e *Engine) { e.execOpts = append(e.execOpts, opts...) } }

// Engine is safe for concurrent use.
type Engine struct {
	bp       *blueprint.Blueprint
	exec     *executor.Executor
	plans    *jit.PlanCache
	rules    []jit.Rule
	execOpts []executor.Option
	bus      *eventbus.Bus
	log      abstractlogger.Logger
}

// Response is the GraphQL response of one request. Data is null when the
// request failed before execution or null reached the root.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors gqlerror.List   `json:"errors,omitempty"`

	// Operation is "query" or "mutation", empty when no plan was built.
	Operation string `json:"-"`
}

// New prepares an engine for bp. Introspection fields are added to the
// query type, and the server limits in bp become plan rules.
func New(bp *blueprint.Blueprint, transports upstream.Transports, opts ...Option) (*Engine, error) {
	e := &Engine{log: abstractlogger.NoopLogger}
	for _, opt := range opts {
		opt(e)
	}
	e.bp = introspection.Extend(bp)
	e.rules = append(jit.RulesFor(bp.Server.QueryComplexity, bp.Server.QueryDepth), e.rules...)

	plans, err := jit.NewPlanCache(bp.Server.PlanCacheSize)
	if err != nil {
		return nil, err
	}
	e.plans = plans
	e.exec = executor.New(e.bp, transports, append([]executor.Option{executor.WithLogger(e.log)}, e.execOpts...)...)
	return e, nil
}

// Blueprint returns the blueprint requests run against, introspection
// included.
func (e *Engine) Blueprint() *blueprint.Blueprint { return e.bp }

// Execute runs one request. header carries the incoming request headers
// for templates and forwarding.
func (e *Engine) Execute(ctx context.Context, req *jit.Request, header http.Header) *Response {
	plan, err := e.plan(ctx, req.Query, req.OperationName)
	if err != nil {
		return failed(err)
	}
	res := &Response{Operation: string(plan.Operation)}

	vars, err := jit.CoerceVariables(e.bp, plan, req.Variables)
	if err != nil {
		res.Errors = errorList(err)
		return res
	}

	s, err := e.exec.Execute(ctx, plan, executor.Request{Variables: vars, Header: header})
	if err != nil {
		res.Errors = errorList(err)
		return res
	}
	out := synth.New[json.RawMessage](e.bp, plan, s, vars, synth.Raw{}).Run(nil)
	res.Data = out.Data
	res.Errors = out.Errors
	return res
}

func (e *Engine) plan(ctx context.Context, query, operationName string) (*jit.OperationPlan, error) {
	if plan, ok := e.plans.Get(query, operationName); ok {
		return plan, nil
	}
	start := time.Now()
	doc, err := language.ParseQuery(query)
	if err != nil {
		e.log.Debug("parse query", abstractlogger.Error(err))
		return nil, err
	}
	plan, err := jit.NewBuilder(e.bp, e.rules...).Build(doc, operationName)
	if err != nil {
		e.log.Debug("build plan",
			abstractlogger.String("operation", operationName),
			abstractlogger.Error(err),
		)
		return nil, err
	}
	e.plans.Add(query, operationName, plan)

	fields := len(plan.Fields())
	e.log.Debug("plan cache miss",
		abstractlogger.String("operation", operationName),
		abstractlogger.Int("fields", fields),
	)
	eventbus.Publish(ctx, e.bus, events.PlanBuilt{
		OperationName: operationName,
		Fields:        fields,
		Complexity:    jit.Complexity(plan),
		Duration:      time.Since(start),
	})
	return plan, nil
}

func failed(err error) *Response {
	return &Response{Errors: errorList(err)}
}

func errorList(err error) gqlerror.List {
	var list gqlerror.List
	if errors.As(err, &list) {
		return list
	}
	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		return gqlerror.List{gerr}
	}
	return gqlerror.List{{Message: err.Error()}}
}
