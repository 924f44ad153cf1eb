// Package errors provides structured error handling for pagesearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and storage errors
//   - 3XX: Collaborator availability (content tree, search engine)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig       Category = "CONFIG"
	CategoryIO           Category = "IO"
	CategoryCollaborator Category = "COLLABORATOR"
	CategoryValidation   Category = "VALIDATION"
	CategoryInternal     Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeUnknownBackend = "ERR_103_UNKNOWN_BACKEND"

	// IO errors (200-299)
	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCorruptIndex = "ERR_205_CORRUPT_INDEX"
	ErrCodeIndexWrite   = "ERR_207_INDEX_WRITE"
	ErrCodeIndexLocked  = "ERR_208_INDEX_LOCKED"

	// Collaborator errors (300-399)
	ErrCodeContentUnavailable = "ERR_301_CONTENT_UNAVAILABLE"
	ErrCodeEngineUnavailable  = "ERR_302_ENGINE_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeGroupNotFound     = "ERR_402_GROUP_NOT_FOUND"
	ErrCodeInvalidQuery      = "ERR_403_INVALID_QUERY"
	ErrCodeNoKeywordFilter   = "ERR_404_NO_KEYWORD_FILTER"
	ErrCodeInvalidPath       = "ERR_406_INVALID_PATH"
	ErrCodeReindexInProgress = "ERR_409_REINDEX_IN_PROGRESS"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeSearchFailed  = "ERR_503_SEARCH_FAILED"
	ErrCodeReindexFailed = "ERR_505_REINDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryCollaborator
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeReindexInProgress:
		return SeverityWarning
	}
	return SeverityError
}
