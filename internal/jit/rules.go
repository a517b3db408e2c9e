package jit

import (
	"errors"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Rule is a policy a plan must satisfy before it is executed. Rules must
// not modify the plan.
type Rule interface {
	Validate(plan *OperationPlan) error
}

type RuleFunc func(plan *OperationPlan) error

func (f RuleFunc) Validate(plan *OperationPlan) error { return f(plan) }

// QueryComplexity rejects plans whose complexity exceeds budget. A field
// contributes one plus the complexity of its children.
func QueryComplexity(budget int) Rule {
	return RuleFunc(func(plan *OperationPlan) error {
		if Complexity(plan) > budget {
			return errors.New("Query Complexity validation failed.")
		}
		return nil
	})
}

// QueryDepth rejects plans nested deeper than max. Root fields are at
// depth one.
func QueryDepth(max int) Rule {
	return RuleFunc(func(plan *OperationPlan) error {
		if Depth(plan) > max {
			return errors.New("Query Depth validation failed.")
		}
		return nil
	})
}

func Complexity(plan *OperationPlan) int {
	total := 0
	for _, f := range plan.Root {
		total += complexity(f)
	}
	return total
}

func complexity(f *Field) int {
	n := 1
	for _, c := range f.Children {
		n += complexity(c)
	}
	return n
}

func Depth(plan *OperationPlan) int {
	max := 0
	for _, f := range plan.Root {
		if d := depth(f); d > max {
			max = d
		}
	}
	return max
}

func depth(f *Field) int {
	max := 0
	for _, c := range f.Children {
		if d := depth(c); d > max {
			max = d
		}
	}
	return max + 1
}

// RulesFor returns the rules enabled by the given limits. Zero disables a
// limit.
func RulesFor(complexityBudget, maxDepth int) []Rule {
	var rules []Rule
	if complexityBudget > 0 {
		rules = append(rules, QueryComplexity(complexityBudget))
	}
	if maxDepth > 0 {
		rules = append(rules, QueryDepth(maxDepth))
	}
	return rules
}

func ruleError(err error) error {
	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		return gerr
	}
	return &gqlerror.Error{
		Message:    err.Error(),
		Extensions: map[string]any{"code": "VALIDATION_FAILED"},
	}
}
