package main

import (
	"context"
	"fmt"

	"github.com/hanpama/gqlforge/internal/extension"
)

// builtinExtensions are the extensions compiled into the gqlforge binary.
// An Extension link selects one by name.
func builtinExtensions() *extension.Registry {
	r := extension.NewRegistry()
	r.Register("merge", merge)
	return r
}

// merge returns the parent object with the params object laid over it.
func merge(_ context.Context, params, value any) (any, error) {
	out := map[string]any{}
	if value != nil {
		v, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("merge: parent value is %T, not an object", value)
		}
		for k, x := range v {
			out[k] = x
		}
	}
	if params != nil {
		p, ok := params.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("merge: params are %T, not an object", params)
		}
		for k, x := range p {
			out[k] = x
		}
	}
	return out, nil
}
