package executor

import (
	"context"
	"net/http"

	"github.com/jensneuse/abstractlogger"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/gqlforge/internal/blueprint"
	"github.com/hanpama/gqlforge/internal/cache"
	"github.com/hanpama/gqlforge/internal/config"
	"github.com/hanpama/gqlforge/internal/jit"
	"github.com/hanpama/gqlforge/internal/mustache"
	"github.com/hanpama/gqlforge/internal/store"
	"github.com/hanpama/gqlforge/internal/upstream"
)

type Option func(*Executor)

// WithCache backs Cache nodes. Without it they behave like plain IO.
func WithCache(c *cache.Cache) Option {
	return func(e *Executor) { e.cache = c }
}

func WithEnv(env config.Env) Option {
	return func(e *Executor) { e.env = env }
}

func WithLogger(l abstractlogger.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithConcurrency bounds how many jobs of one wave run at once. Zero means
// unbounded.
func WithConcurrency(n int) Option {
	return func(e *Executor) { e.limit = n }
}

// Executor is safe for concurrent use; every Execute call owns its state.
type Executor struct {
	bp         *blueprint.Blueprint
	transports upstream.Transports
	cache      *cache.Cache
	env        config.Env
	log        abstractlogger.Logger
	limit      int
}

func New(bp *blueprint.Blueprint, transports upstream.Transports, opts ...Option) *Executor {
	e := &Executor{
		bp:         bp,
		transports: transports,
		env:        config.OSEnv{},
		log:        abstractlogger.NoopLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request carries what one execution needs besides the plan. Variables must
// already be coerced.
type Request struct {
	Variables map[string]any
	Header    http.Header
	// Root is the parent value of root fields.
	Root any
}

type job struct {
	field   *jit.Field
	parent  any
	indexes []int
}

func (j job) key() store.Key {
	return store.Key{Field: int(j.field.ID), Indexes: j.indexes}
}

type run struct {
	*Executor
	vars   map[string]any
	header http.Header
	store  *store.Store
}

// Execute resolves every remote field instance of plan and returns the
// populated Store.
func (e *Executor) Execute(ctx context.Context, plan *jit.OperationPlan, req Request) (*store.Store, error) {
	r := &run{
		Executor: e,
		vars:     req.Variables,
		header:   req.Header,
		store:    store.New(),
	}
	if !plan.IsMutation() {
		var jobs []job
		r.expand(plan.Root, req.Root, nil, &jobs)
		if err := r.drain(ctx, jobs); err != nil {
			return nil, err
		}
		return r.store, nil
	}
	for _, f := range plan.Root {
		var jobs []job
		r.expand([]*jit.Field{f}, req.Root, nil, &jobs)
		if err := r.drain(ctx, jobs); err != nil {
			return nil, err
		}
	}
	return r.store, nil
}

// drain runs waves until no remote field is left.
func (r *run) drain(ctx context.Context, jobs []job) error {
	for wave := 0; len(jobs) > 0; wave++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.log.Debug("executor: wave",
			abstractlogger.Int("wave", wave),
			abstractlogger.Int("jobs", len(jobs)),
		)

		results := make([]store.Result, len(jobs))
		inflight := newFlights()
		var g errgroup.Group
		if r.limit > 0 {
			g.SetLimit(r.limit)
		}
		for i, j := range jobs {
			g.Go(func() error {
				v, err := r.resolve(ctx, j, inflight)
				results[i] = store.Result{Value: v, Err: err}
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}

		var next []job
		for i, j := range jobs {
			res := results[i]
			if err := r.store.Set(j.key(), res); err != nil {
				return err
			}
			if res.Err != nil {
				r.log.Debug("executor: field failed",
					abstractlogger.String("field", j.field.ParentType+"."+j.field.Name),
					abstractlogger.String("instance", j.key().String()),
					abstractlogger.Error(res.Err),
				)
				continue
			}
			r.descend(j.field, j.field.Type, res.Value, j.indexes, &next)
		}
		jobs = next
	}
	return nil
}

func (r *run) resolve(ctx context.Context, j job, inflight *flights) (any, error) {
	args, err := j.field.ArgValues(r.bp, r.vars)
	if err != nil {
		return nil, err
	}
	ec := &EvalContext{
		Value:  j.parent,
		Args:   args,
		Vars:   r.bp.Server.Vars,
		Header: r.header,
		Env:    r.env,
	}
	return r.eval(ctx, j.field.Resolver, ec, inflight)
}

// expand walks fields on parent. Physical fields descend in place; remote
// fields are appended to out.
func (r *run) expand(fields []*jit.Field, parent any, indexes []int, out *[]job) {
	for _, f := range fields {
		if f.IsTypename() || !f.Included(r.vars) {
			continue
		}
		if f.Resolver != nil {
			*out = append(*out, job{field: f, parent: parent, indexes: indexes})
			continue
		}
		v, _ := mustache.Lookup(parent, []string{f.Name})
		r.descend(f, f.Type, v, indexes, out)
	}
}

// descend expands the children of f over v, one list level of t at a time.
func (r *run) descend(f *jit.Field, t *blueprint.TypeRef, v any, indexes []int, out *[]job) {
	if v == nil || len(f.Children) == 0 {
		return
	}
	t = t.Nullable()
	if t.Kind == blueprint.TypeRefKindList {
		items, ok := v.([]any)
		if !ok {
			return
		}
		for i, item := range items {
			r.descend(f, t.OfType, item, appendIndex(indexes, i), out)
		}
		return
	}
	r.expand(f.Children, v, indexes, out)
}

func appendIndex(indexes []int, i int) []int {
	out := make([]int, len(indexes)+1)
	copy(out, indexes)
	out[len(indexes)] = i
	return out
}
