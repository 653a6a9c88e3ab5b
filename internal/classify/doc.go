// Package classify assigns one of six lifecycle labels to email threads.
//
// A thread is evaluated as a whole conversation rather than message by
// message. Old threads short-circuit to the history label via a pure age
// rule; everything else is rendered into a chronological transcript,
// classified by a language model, and parsed back into a typed result.
// The pipeline is total: every failure mode maps to a defined fallback
// classification, so batch callers never have to handle per-thread errors.
package classify
