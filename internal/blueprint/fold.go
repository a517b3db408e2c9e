package blueprint

import (
	"github.com/hanpama/gqlforge/internal/config"
	"github.com/hanpama/gqlforge/internal/ir"
)

// operator contributes one configured step to the IR accumulated so far.
// It returns false when the step could not be compiled; the violation has
// already been recorded by then.
type operator func(c *compiler, acc ir.IR, op config.Operator, trace []string) (ir.IR, bool)

var operators = map[string]operator{
	"http":      chain(compileHTTP),
	"grpc":      chain(compileGRPC),
	"graphql":   chain(compileGraphQL),
	"extension": chain(compileExtension),
	"const":     chain(compileConst),
	"expr":      chain(compileExpr),
	"cache":     updateCache,
	"path":      updatePath,
	"map":       updateMap,
}

// fold compiles the operator chain of one field left to right.
func (c *compiler) fold(trace []string, ops []config.Operator) ir.IR {
	var acc ir.IR
	for _, op := range ops {
		name := op.Name()
		stepTrace := append(append([]string(nil), trace...), "@"+name)
		if n := op.Count(); n != 1 {
			c.addViolation(violationOperatorCount(n, stepTrace...))
			continue
		}
		next, ok := operators[name](c, acc, op, stepTrace)
		if ok {
			acc = next
		}
	}
	return acc
}

// chain adapts a leaf compiler into an operator. A leaf that follows an
// existing IR consumes its result as the parent value.
func chain(leaf func(c *compiler, op config.Operator, trace []string) (ir.IR, bool)) operator {
	return func(c *compiler, acc ir.IR, op config.Operator, trace []string) (ir.IR, bool) {
		next, ok := leaf(c, op, trace)
		if !ok {
			return nil, false
		}
		if acc == nil {
			return next, true
		}
		return &ir.Pipe{First: acc, Second: next}, true
	}
}

func compileConst(c *compiler, op config.Operator, trace []string) (ir.IR, bool) {
	dv, err := ir.ParseDynamic(op.Const.Data)
	if err != nil {
		c.addViolation(violationf(trace, "%v", err))
		return nil, false
	}
	if dv.IsConst() {
		return &ir.Const{Value: op.Const.Data}, true
	}
	return &ir.Dynamic{Value: dv}, true
}

func compileExpr(c *compiler, op config.Operator, trace []string) (ir.IR, bool) {
	if op.Expr.Body == nil {
		c.addViolation(violationf(trace, "expr requires a body"))
		return nil, false
	}
	dv, err := ir.ParseDynamic(op.Expr.Body)
	if err != nil {
		c.addViolation(violationf(trace, "%v", err))
		return nil, false
	}
	return &ir.Dynamic{Value: dv}, true
}

func updateCache(c *compiler, acc ir.IR, op config.Operator, trace []string) (ir.IR, bool) {
	if acc == nil || !ir.HasIO(acc) {
		c.addViolation(violationCacheWithoutResolver(trace...))
		return nil, false
	}
	if op.Cache.MaxAge <= 0 {
		c.addViolation(violationf(trace, "cache maxAge must be positive"))
		return nil, false
	}
	maxAge := op.Cache.MaxAge
	return ir.Rewrite(acc, func(n ir.IR) (ir.IR, bool) {
		switch v := n.(type) {
		case *ir.IO:
			return &ir.Cache{IO: v, MaxAge: maxAge}, true
		case *ir.Cache:
			return &ir.Cache{IO: v.IO, MaxAge: maxAge}, true
		}
		return nil, false
	}), true
}

func updatePath(c *compiler, acc ir.IR, op config.Operator, trace []string) (ir.IR, bool) {
	if len(op.Path) == 0 {
		c.addViolation(violationf(trace, "path must not be empty"))
		return nil, false
	}
	p := &ir.Path{Child: acc}
	for _, raw := range op.Path {
		t, ok := c.parseTemplate(raw, trace)
		if !ok {
			return nil, false
		}
		p.Path = append(p.Path, t)
	}
	return p, true
}

func updateMap(c *compiler, acc ir.IR, op config.Operator, trace []string) (ir.IR, bool) {
	if acc == nil {
		c.addViolation(violationf(trace, "map requires a preceding resolver"))
		return nil, false
	}
	return &ir.Map{Child: acc, Mapping: op.Map}, true
}
