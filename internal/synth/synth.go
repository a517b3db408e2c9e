// Package synth assembles the response of an execution from its plan and
// Store, applying GraphQL null propagation.
//
// A field whose value cannot be produced (a resolver error, a leaf that
// does not serialize, null in a non-null position) records exactly one
// error at its own path. The null then travels up to the nearest nullable
// ancestor; when no ancestor is nullable, data itself is null.
package synth

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/gqlforge/internal/blueprint"
	"github.com/hanpama/gqlforge/internal/jit"
	"github.com/hanpama/gqlforge/internal/language"
	"github.com/hanpama/gqlforge/internal/mustache"
	"github.com/hanpama/gqlforge/internal/store"
)

// Result is a synthesized response.
type Result[V any] struct {
	Data   V
	Errors gqlerror.List
}

type Synth[V any] struct {
	bp    *blueprint.Blueprint
	plan  *jit.OperationPlan
	store *store.Store
	vars  map[string]any
	b     Builder[V]
	errs  gqlerror.List
}

func New[V any](bp *blueprint.Blueprint, plan *jit.OperationPlan, s *store.Store, vars map[string]any, b Builder[V]) *Synth[V] {
	return &Synth[V]{bp: bp, plan: plan, store: s, vars: vars, b: b}
}

// Run builds the response. root is the parent value of root fields.
func (s *Synth[V]) Run(root any) Result[V] {
	s.errs = nil
	data, failed := s.object(s.plan.Root, root, nil, nil)
	if failed {
		data = s.b.Null()
	}
	return Result[V]{Data: data, Errors: s.errs}
}

// object completes a selection set. It reports failure when a non-null
// child could not be completed. The remaining fields are still visited so
// their errors are recorded.
func (s *Synth[V]) object(fields []*jit.Field, parent any, indexes []int, path language.Path) (V, bool) {
	keys := make([]string, 0, len(fields))
	values := make([]V, 0, len(fields))
	nulled := false
	for _, f := range fields {
		if !f.Included(s.vars) {
			continue
		}
		p := appendPath(path, language.PathName(f.Alias))
		if f.IsTypename() {
			v, err := s.b.Leaf(f.ParentType)
			if err != nil {
				s.fail(f, p, err)
				nulled = true
				continue
			}
			keys = append(keys, f.Alias)
			values = append(values, v)
			continue
		}

		var raw any
		if f.Resolver != nil {
			res, _ := s.store.Get(store.Key{Field: int(f.ID), Indexes: indexes})
			if res.Err != nil {
				s.fail(f, p, res.Err)
				if f.Type.IsNonNull() {
					nulled = true
					continue
				}
				keys = append(keys, f.Alias)
				values = append(values, s.b.Null())
				continue
			}
			raw = res.Value
		} else {
			raw, _ = mustache.Lookup(parent, []string{f.Name})
		}

		v, failed := s.complete(f, f.Type, raw, indexes, p)
		if failed {
			nulled = true
			continue
		}
		keys = append(keys, f.Alias)
		values = append(values, v)
	}
	if nulled {
		return s.b.Null(), true
	}
	return s.b.Object(keys, values), false
}

// complete produces the value of f at one position of type t. A failure
// inside a nullable position is absorbed there as null.
func (s *Synth[V]) complete(f *jit.Field, t *blueprint.TypeRef, raw any, indexes []int, path language.Path) (V, bool) {
	if t.IsNonNull() {
		if raw == nil {
			s.fail(f, path, fmt.Errorf("Cannot return null for non-nullable field %s.%s.", f.ParentType, f.Name))
			return s.b.Null(), true
		}
		return s.completeValue(f, t.OfType, raw, indexes, path)
	}
	if raw == nil {
		return s.b.Null(), false
	}
	v, failed := s.completeValue(f, t, raw, indexes, path)
	if failed {
		return s.b.Null(), false
	}
	return v, false
}

func (s *Synth[V]) completeValue(f *jit.Field, t *blueprint.TypeRef, raw any, indexes []int, path language.Path) (V, bool) {
	if t.Kind == blueprint.TypeRefKindList {
		items, ok := raw.([]any)
		if !ok {
			s.fail(f, path, fmt.Errorf("Expected Iterable, but did not find one for field \"%s.%s\".", f.ParentType, f.Name))
			return s.b.Null(), true
		}
		values := make([]V, len(items))
		nulled := false
		for i, item := range items {
			v, failed := s.complete(f, t.OfType, item, appendIndex(indexes, i), appendPath(path, language.PathIndex(i)))
			if failed {
				nulled = true
				continue
			}
			values[i] = v
		}
		if nulled {
			return s.b.Null(), true
		}
		return s.b.List(values), false
	}

	typ := s.bp.Type(t.Name())
	if typ == nil {
		s.fail(f, path, fmt.Errorf("Unknown type \"%s\".", t.Name()))
		return s.b.Null(), true
	}
	if typ.IsLeaf() {
		out, err := Serialize(typ, raw)
		if err == nil {
			var v V
			if v, err = s.b.Leaf(out); err == nil {
				return v, false
			}
		}
		s.fail(f, path, err)
		return s.b.Null(), true
	}
	if _, ok := raw.(map[string]any); !ok {
		s.fail(f, path, fmt.Errorf("Expected value of type \"%s\" but got: %s.", typ.Name, display(raw)))
		return s.b.Null(), true
	}
	return s.object(f.Children, raw, indexes, path)
}

func (s *Synth[V]) fail(f *jit.Field, path language.Path, err error) {
	e := &gqlerror.Error{Message: err.Error(), Path: path}
	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		e.Message = gerr.Message
		e.Extensions = gerr.Extensions
	}
	if f.Pos != nil {
		e.Locations = []gqlerror.Location{{Line: f.Pos.Line, Column: f.Pos.Column}}
	}
	s.errs = append(s.errs, e)
}

func appendPath(path language.Path, elem language.PathElement) language.Path {
	out := make(language.Path, len(path)+1)
	copy(out, path)
	out[len(path)] = elem
	return out
}

func appendIndex(indexes []int, i int) []int {
	out := make([]int, len(indexes)+1)
	copy(out, indexes)
	out[len(indexes)] = i
	return out
}
