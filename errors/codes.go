package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled by the pipeline.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: KV service timeouts, LLM service unavailable.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: empty transcript, unknown memory category.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryResource indicates resource exhaustion or quota issues.
	// Examples: LLM rate limiting, extraction gate rejection.
	CategoryResource ErrorCategory = "resource"

	// CategoryInternal indicates unexpected errors, bugs, or system failures.
	// Examples: corrupted stored envelope, assertion failures.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for the memory pipeline's failure scenarios.
const (
	// Transient errors
	ErrCodeTimeout     ErrorCode = "TIMEOUT"     // Operation timed out
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE" // Backing service temporarily unavailable
	ErrCodeNetworkErr  ErrorCode = "NETWORK_ERR" // Network connectivity issue

	// Permanent errors
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"     // Key or record does not exist
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT" // Malformed or invalid input
	ErrCodeCanceled     ErrorCode = "CANCELED"      // Operation was canceled
	ErrCodeUnsupported  ErrorCode = "UNSUPPORTED"   // Operation not supported

	// Resource errors
	ErrCodeRateLimit     ErrorCode = "RATE_LIMITED"   // Rate limit or gate rejection
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED" // Provider quota exhausted

	// Internal errors
	ErrCodeInternal   ErrorCode = "INTERNAL"   // Unexpected internal error
	ErrCodeCorruption ErrorCode = "CORRUPTION" // Stored data could not be decoded

	// Pipeline-specific errors
	ErrCodeKVWrite         ErrorCode = "KV_WRITE_FAILED"  // KV store rejected a write
	ErrCodeLLMCall         ErrorCode = "LLM_CALL_FAILED"  // LLM request failed after retries
	ErrCodeLLMOutput       ErrorCode = "LLM_BAD_OUTPUT"   // LLM response carried no parseable JSON
	ErrCodeVersionMismatch ErrorCode = "VERSION_MISMATCH" // Stored envelope has a different schema version
	ErrCodeScoreWrite      ErrorCode = "SCORE_WRITE"      // Relationship score persistence failed
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeUnavailable, ErrCodeNetworkErr,
		ErrCodeKVWrite, ErrCodeLLMCall, ErrCodeScoreWrite:
		return CategoryTransient

	case ErrCodeNotFound, ErrCodeInvalidInput, ErrCodeCanceled,
		ErrCodeUnsupported, ErrCodeLLMOutput:
		return CategoryPermanent

	case ErrCodeRateLimit, ErrCodeQuotaExceeded:
		return CategoryResource

	case ErrCodeInternal, ErrCodeCorruption, ErrCodeVersionMismatch:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	return c.DefaultCategory().IsRetryable()
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:         "operation timed out",
	ErrCodeUnavailable:     "service temporarily unavailable",
	ErrCodeNetworkErr:      "network connectivity error",
	ErrCodeNotFound:        "resource not found",
	ErrCodeInvalidInput:    "invalid input provided",
	ErrCodeCanceled:        "operation canceled",
	ErrCodeUnsupported:     "operation not supported",
	ErrCodeRateLimit:       "rate limit exceeded",
	ErrCodeQuotaExceeded:   "quota exceeded",
	ErrCodeInternal:        "internal error",
	ErrCodeCorruption:      "stored data corrupted",
	ErrCodeKVWrite:         "key-value write failed",
	ErrCodeLLMCall:         "llm request failed",
	ErrCodeLLMOutput:       "llm response had no parseable JSON",
	ErrCodeVersionMismatch: "stored schema version mismatch",
	ErrCodeScoreWrite:      "relationship score write failed",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return string(c)
}
