package blueprint

import (
	"fmt"
	"strings"
)

// Violation is one compile error. Trace locates it in the configuration,
// e.g. ["Query", "posts", "@http"].
type Violation struct {
	Message string   `json:"message"`
	Trace   []string `json:"trace,omitempty"`
}

func (v *Violation) String() string {
	if len(v.Trace) == 0 {
		return v.Message
	}
	return fmt.Sprintf("%s [%s]", v.Message, strings.Join(v.Trace, "."))
}

// ValidationError collects every violation found during compilation.
type ValidationError []*Violation

func (e ValidationError) Error() string {
	msg := "violations found:\n"
	for _, v := range e {
		msg += "- " + v.String() + "\n"
	}
	return msg
}

// Messages returns the violation messages in order.
func (e ValidationError) Messages() []string {
	out := make([]string, len(e))
	for i, v := range e {
		out[i] = v.Message
	}
	return out
}

// Messages kept stable; tests and tooling match on them.

const msgExtensionLinkRequired = "A @link with path to dylib is required"

func violationUnknownType(name string, trace ...string) *Violation {
	return &Violation{Message: fmt.Sprintf("unknown type %q", name), Trace: trace}
}

func violationNoBaseURL(trace ...string) *Violation {
	return &Violation{Message: "No base URL defined", Trace: trace}
}

func violationOperatorCount(n int, trace ...string) *Violation {
	return &Violation{Message: fmt.Sprintf("a resolver step must set exactly one operator, found %d", n), Trace: trace}
}

func violationCacheWithoutResolver(trace ...string) *Violation {
	return &Violation{Message: "@cache requires a preceding resolver", Trace: trace}
}

func violationOutputType(field, typ string, trace ...string) *Violation {
	return &Violation{Message: fmt.Sprintf("field %s has input type %s; output type expected", field, typ), Trace: trace}
}

func violationInputType(arg, typ string, trace ...string) *Violation {
	return &Violation{Message: fmt.Sprintf("argument %s has type %s; input type expected", arg, typ), Trace: trace}
}

func violationf(trace []string, format string, args ...any) *Violation {
	return &Violation{Message: fmt.Sprintf(format, args...), Trace: trace}
}
