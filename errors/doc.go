// Package errors provides a structured error taxonomy for the memokit
// memory pipeline. It defines error codes and categories that let the
// extraction pipeline decide, per stage, whether to retry, skip, or
// degrade to a no-op without surfacing the failure to the chat flow.
//
// # Error Categories
//
// Errors are classified into four categories:
//
//   - Transient: Temporary failures where retry may succeed (KV/LLM transport, etc.)
//   - Permanent: Failures where retry will not help (invalid transcript, unparseable output)
//   - Resource: Resource exhaustion issues (rate limits, quotas)
//   - Internal: Unexpected errors indicating bugs or corrupted stored state
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.ErrCodeLLMOutput, "response carried no JSON object")
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "reading memory category")
//
// Check if an error is retryable:
//
//	if errors.IsRetryable(err) {
//	    // the next extraction attempt may succeed
//	}
//
// All errors support JSON serialization so extraction outcomes can be
// logged and inspected as structured records.
package errors
