package errors

import (
	stderrors "errors"
	"fmt"
)

// IndexError is the structured error type shared by the parser, the
// backends and the orchestrator.
type IndexError struct {
	Code       string
	Message    string
	Category   Category
	Severity   Severity
	Details    map[string]string
	Cause      error
	Retryable  bool
	Suggestion string
}

func (e *IndexError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is matches by code so callers can write errors.Is(err, errors.New(code, "", nil)).
func (e *IndexError) Is(target error) bool {
	if t, ok := target.(*IndexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail attaches a key-value pair and returns the receiver.
func (e *IndexError) WithDetail(key, value string) *IndexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion attaches a user-facing hint and returns the receiver.
func (e *IndexError) WithSuggestion(suggestion string) *IndexError {
	e.Suggestion = suggestion
	return e
}

// New creates an IndexError; category, severity and retryability come from the code.
func New(code string, message string, cause error) *IndexError {
	return &IndexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap converts err into an IndexError carrying err's message.
func Wrap(code string, err error) *IndexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// FormatError reports a document that matches neither dialect.
func FormatError(path, message string, cause error) *IndexError {
	return New(ErrCodeFormat, message, cause).WithDetail("path", path)
}

// WriteError reports a failed statement against a backend.
func WriteError(table, path string, cause error) *IndexError {
	return New(ErrCodeWriteFailed, "write to "+table+" failed", cause).
		WithDetail("table", table).
		WithDetail("path", path)
}

// BackendUnavailable reports a destination that could not be opened.
func BackendUnavailable(backend string, cause error) *IndexError {
	return New(ErrCodeBackendUnavailable, backend+" backend unavailable", cause).
		WithDetail("backend", backend)
}

// As finds the first IndexError in err's chain.
func As(err error) (*IndexError, bool) {
	var ie *IndexError
	if stderrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// IsRetryable reports whether any IndexError in the chain is retryable.
func IsRetryable(err error) bool {
	ie, ok := As(err)
	return ok && ie.Retryable
}

// IsFatal reports whether any IndexError in the chain is fatal.
func IsFatal(err error) bool {
	ie, ok := As(err)
	return ok && ie.Severity == SeverityFatal
}

// GetCode returns the code of the first IndexError in the chain, or "".
func GetCode(err error) string {
	if ie, ok := As(err); ok {
		return ie.Code
	}
	return ""
}
