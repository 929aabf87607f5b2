// Package errors provides structured error handling for the artifact indexer.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (source documents, database files)
//   - 3XX: Backend connectivity errors
//   - 4XX: Document format errors
//   - 5XX: Internal and write errors
package errors

// Category classifies an error for logging and presentation.
type Category string

const (
	CategoryConfig   Category = "CONFIG"
	CategoryIO       Category = "IO"
	CategoryBackend  Category = "BACKEND"
	CategoryFormat   Category = "FORMAT"
	CategoryInternal Category = "INTERNAL"
)

// Severity tells the orchestrator whether a run can continue.
type Severity string

const (
	// SeverityFatal aborts the run.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails one document; the batch continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, e.g. a backend fallback.
	SeverityWarning Severity = "WARNING"
)

const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigRead    = "ERR_102_CONFIG_READ"

	// IO errors (200-299)
	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFileRead     = "ERR_202_FILE_READ"
	ErrCodeLockFailed   = "ERR_203_LOCK_FAILED"

	// Backend errors (300-399)
	ErrCodeBackendUnavailable = "ERR_301_BACKEND_UNAVAILABLE"
	ErrCodeDriverMissing      = "ERR_302_DRIVER_MISSING"

	// Format errors (400-499)
	ErrCodeFormat      = "ERR_401_FORMAT"
	ErrCodeUnknownKind = "ERR_402_UNKNOWN_KIND"
	ErrCodeQueryEmpty  = "ERR_403_QUERY_EMPTY"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeWriteFailed  = "ERR_502_WRITE_FAILED"
	ErrCodeSchemaFailed = "ERR_503_SCHEMA_FAILED"
	ErrCodeSearchFailed = "ERR_504_SEARCH_FAILED"
)

func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryBackend
	case '4':
		return CategoryFormat
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigInvalid, ErrCodeConfigRead, ErrCodeSchemaFailed, ErrCodeDriverMissing:
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeBackendUnavailable, ErrCodeLockFailed:
		return true
	default:
		return false
	}
}
