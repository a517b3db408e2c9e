// Package executor runs an OperationPlan breadth-first and records every
// resolved field instance in a Store.
//
// # Overview
//
// Fields are either physical or remote:
//   - Physical fields have no resolver. Their value is the property of the
//     same name on the parent value, so they are expanded in place and never
//     cost a wave.
//   - Remote fields carry resolver IR. They are collected while expanding
//     and resolved together in the next wave.
//
// # Waves
//
// Wave 0 holds the remote root fields. Each wave:
//
//	A. Resolve
//	   - Every job of the wave runs concurrently. Its arguments are bound
//	     against the request variables and its IR is evaluated against an
//	     EvalContext (parent value, args, headers, vars, env).
//	   - IO nodes are rendered into upstream requests. Requests with the
//	     same key share one call for the duration of the wave.
//
//	B. Record
//	   - Each outcome is written to the Store under (field, list indexes).
//	     An error is recorded for its instance only; siblings continue.
//
//	C. Expand
//	   - Successful values are walked through physical descendants. List
//	     levels append an index. Remote descendants become the next wave.
//
// For a plan with remote depth d, exactly d waves run.
//
// # Mutations
//
// Root fields of a mutation run one after another, each to completion
// including its nested waves, in document order.
//
// # Cancellation
//
// A cancelled context stops the run between waves and Execute returns the
// context error. Partial results are not returned.
package executor
