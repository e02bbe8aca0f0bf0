// Package ratelimit gates memory extraction per conversation.
//
// Extraction is expensive (one LLM call per trigger) and the trigger is
// a fire-and-forget beacon the client may send on every page event, so
// each conversation is limited to one extraction per minimum interval.
// The gate is best-effort and in-process: two replicas each keep their
// own state, which narrows the duplicate-extraction window rather than
// closing it. Merge semantics upstream make duplicates safe.
//
// Usage:
//
//	gate := ratelimit.NewIntervalGate(time.Minute)
//	if gate.Allow("conv-123") {
//		// run extraction
//	}
package ratelimit
