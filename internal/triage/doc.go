// Package triage orchestrates the inbox triage pipeline: it fetches
// threads from Gmail, runs them through the classifier, and applies
// the resulting labels.
//
// The Service type composes a Gmail client, a thread classifier, and a
// label applier into the operations exposed by the CLI and the MCP
// tools. Classification itself never fails a run; per-thread errors
// surface as fallback classifications, and label application errors
// are collected per thread instead of aborting the batch.
package triage
