// Package mustache implements the request template language used to build
// outbound requests from field arguments, parent values, headers,
// configured vars and the process environment.
//
// A template is parsed once into literal and expression segments:
//
//	http://localhost:3000/users/{{.args.id}}?fields={{.vars.fields}}
//
// Expressions are dotted paths whose first element names a source
// (args, vars, headers, env or value). The leading dot is optional.
// Rendering never fails: an expression that resolves to nothing renders
// as the empty string and the surrounding literals are still emitted.
package mustache

import (
	"fmt"
	"net/http"
	"strings"
)

// Source names the namespace an expression reads from.
type Source string

const (
	SourceArgs    Source = "args"
	SourceVars    Source = "vars"
	SourceHeaders Source = "headers"
	SourceEnv     Source = "env"
	SourceValue   Source = "value"
)

var sources = map[Source]struct{}{
	SourceArgs:    {},
	SourceVars:    {},
	SourceHeaders: {},
	SourceEnv:     {},
	SourceValue:   {},
}

// PathString resolves a path to its string form.
type PathString interface {
	PathString(path []string) (string, bool)
}

// PathValue resolves a path to a raw JSON-like value.
type PathValue interface {
	PathValue(path []string) (any, bool)
}

// HasHeaders exposes the headers of the request being served.
type HasHeaders interface {
	Headers() http.Header
}

// Expression is a parsed {{...}} segment. Path includes the source as its
// first element.
type Expression struct {
	Path []string
}

// Source returns the namespace the expression reads from.
func (e Expression) Source() Source {
	return Source(e.Path[0])
}

func (e Expression) String() string {
	return "{{." + strings.Join(e.Path, ".") + "}}"
}

// Segment is either a literal run of text or an expression.
type Segment struct {
	Literal string
	Expr    *Expression
}

// Template is an ordered list of segments.
type Template struct {
	Segments []Segment
}

// ParseError reports a malformed template.
type ParseError struct {
	Template string
	Offset   int
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid template %q at offset %d: %s", e.Template, e.Offset, e.Reason)
}

// Parse scans s into segments.
func Parse(s string) (Template, error) {
	var t Template
	rest := s
	offset := 0
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			break
		}
		if start > 0 {
			t.Segments = append(t.Segments, Segment{Literal: rest[:start]})
		}
		raw := rest[start+2 : start+2+end]
		expr, reason := parseExpression(raw)
		if reason != "" {
			return Template{}, &ParseError{Template: s, Offset: offset + start, Reason: reason}
		}
		t.Segments = append(t.Segments, Segment{Expr: expr})
		consumed := start + 2 + end + 2
		rest = rest[consumed:]
		offset += consumed
	}
	if rest != "" {
		t.Segments = append(t.Segments, Segment{Literal: rest})
	}
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level templates.
func MustParse(s string) Template {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func parseExpression(raw string) (*Expression, string) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, ".")
	if raw == "" {
		return nil, "empty path"
	}
	path := strings.Split(raw, ".")
	for _, p := range path {
		if strings.TrimSpace(p) == "" {
			return nil, "empty path segment"
		}
	}
	for i := range path {
		path[i] = strings.TrimSpace(path[i])
	}
	if _, ok := sources[Source(path[0])]; !ok {
		return nil, fmt.Sprintf("unknown source %q", path[0])
	}
	return &Expression{Path: path}, ""
}

// IsConst reports whether the template has no expressions.
func (t Template) IsConst() bool {
	for _, s := range t.Segments {
		if s.Expr != nil {
			return false
		}
	}
	return true
}

// Expressions returns the expression segments in order.
func (t Template) Expressions() []Expression {
	var out []Expression
	for _, s := range t.Segments {
		if s.Expr != nil {
			out = append(out, *s.Expr)
		}
	}
	return out
}

// String reassembles the template source in canonical form.
func (t Template) String() string {
	var b strings.Builder
	for _, s := range t.Segments {
		if s.Expr != nil {
			b.WriteString(s.Expr.String())
			continue
		}
		b.WriteString(s.Literal)
	}
	return b.String()
}
