package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassificationFromCode(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityFatal, false},
		{ErrCodeFileNotFound, CategoryIO, SeverityError, false},
		{ErrCodeBackendUnavailable, CategoryBackend, SeverityWarning, true},
		{ErrCodeFormat, CategoryFormat, SeverityError, false},
		{ErrCodeWriteFailed, CategoryInternal, SeverityError, false},
		{ErrCodeSchemaFailed, CategoryInternal, SeverityFatal, false},
		{"bad", CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)

			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestIndexError_ErrorIncludesCause(t *testing.T) {
	// Given: an error with a distinct cause
	err := New(ErrCodeWriteFailed, "write to plans failed", fmt.Errorf("disk I/O"))

	// When/Then: both appear in the message
	assert.Equal(t, "[ERR_502_WRITE_FAILED] write to plans failed: disk I/O", err.Error())
}

func TestIndexError_IsMatchesByCode(t *testing.T) {
	// Given: a format error wrapped by fmt.Errorf
	base := FormatError("/tmp/x.yaml", "missing frontmatter", nil)
	wrapped := fmt.Errorf("parse: %w", base)

	// Then: errors.Is matches any IndexError with the same code
	assert.True(t, stderrors.Is(wrapped, New(ErrCodeFormat, "", nil)))
	assert.False(t, stderrors.Is(wrapped, New(ErrCodeWriteFailed, "", nil)))
}

func TestHelpers_WalkTheChain(t *testing.T) {
	// Given: a retryable error buried in a chain
	err := fmt.Errorf("open: %w", BackendUnavailable("server", stderrors.New("refused")))

	// Then
	assert.True(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, ErrCodeBackendUnavailable, GetCode(err))
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
}

func TestWriteError_CarriesTableAndPath(t *testing.T) {
	err := WriteError("handoffs", "/a/b.md", stderrors.New("constraint"))

	require.NotNil(t, err.Details)
	assert.Equal(t, "handoffs", err.Details["table"])
	assert.Equal(t, "/a/b.md", err.Details["path"])
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}
