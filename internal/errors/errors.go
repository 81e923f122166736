package errors

import (
	stderrors "errors"
	"fmt"
)

// RAGError is the structured error returned by claimrag packages.
type RAGError struct {
	// Code is the unique error code (e.g., "ERR_504_CHUNKING_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details carries context such as the section or query that failed.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	Retryable bool

	// Suggestion is an actionable hint for CLI users.
	Suggestion string
}

func (e *RAGError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RAGError) Unwrap() error {
	return e.Cause
}

// Is matches another *RAGError by code, so errors.Is(err, ErrX) works with
// sentinel values built from New.
func (e *RAGError) Is(target error) bool {
	if t, ok := target.(*RAGError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *RAGError) WithDetail(key, value string) *RAGError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the user hint and returns the error for chaining.
func (e *RAGError) WithSuggestion(suggestion string) *RAGError {
	e.Suggestion = suggestion
	return e
}

// New creates a RAGError. Category, severity and the retryable flag are
// derived from the code.
func New(code string, message string, cause error) *RAGError {
	return &RAGError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap converts err into a RAGError with the given code, reusing its message.
func Wrap(code string, err error) *RAGError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ChunkingError reports that segmenting a section failed. The whole document
// assembly is aborted when one is returned.
func ChunkingError(message string, cause error) *RAGError {
	return New(ErrCodeChunkingFailed, message, cause)
}

// RetrievalError reports a failed query: an empty query, or an embedding or
// store failure while fetching candidates.
func RetrievalError(message string, cause error) *RAGError {
	return New(ErrCodeRetrievalFailed, message, cause)
}

// ConfigError reports invalid configuration or construction arguments.
func ConfigError(message string, cause error) *RAGError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IndexingError reports a failure while building or storing an index.
func IndexingError(message string, cause error) *RAGError {
	return New(ErrCodeIndexFailed, message, cause)
}

func ValidationError(message string, cause error) *RAGError {
	return New(ErrCodeInvalidInput, message, cause)
}

func NetworkError(message string, cause error) *RAGError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

func InternalError(message string, cause error) *RAGError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first *RAGError in err's chain.
func As(err error) (*RAGError, bool) {
	var re *RAGError
	if stderrors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsRetryable reports whether any RAGError in the chain is retryable.
func IsRetryable(err error) bool {
	re, ok := As(err)
	return ok && re.Retryable
}

// IsFatal reports whether err carries fatal severity.
func IsFatal(err error) bool {
	re, ok := As(err)
	return ok && re.Severity == SeverityFatal
}

// GetCode returns the code of the outermost RAGError, or "".
func GetCode(err error) string {
	if re, ok := As(err); ok {
		return re.Code
	}
	return ""
}

// GetCategory returns the category of the outermost RAGError, or "".
func GetCategory(err error) Category {
	if re, ok := As(err); ok {
		return re.Category
	}
	return ""
}
