// Package errors provides structured error handling for gamescout.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration and rule-table errors
//   - 2XX: Catalog storage errors
//   - 3XX: Source and provider errors
//   - 4XX: Input errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration or rule-table errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates catalog storage errors.
	CategoryStorage Category = "STORAGE"
	// CategorySource indicates primary store or external provider errors.
	CategorySource Category = "SOURCE"
	// CategoryInput indicates invalid caller input.
	CategoryInput Category = "INPUT"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error; startup or the invocation must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation that continues.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeRulesNotFound  = "ERR_103_RULES_NOT_FOUND"
	ErrCodeRulesInvalid   = "ERR_104_RULES_INVALID"

	// Storage errors (200-299)
	ErrCodeCatalogOpen    = "ERR_201_CATALOG_OPEN"
	ErrCodeCatalogCorrupt = "ERR_202_CATALOG_CORRUPT"
	ErrCodeCatalogWrite   = "ERR_203_CATALOG_WRITE"
	ErrCodeCatalogLocked  = "ERR_204_CATALOG_LOCKED"

	// Source errors (300-399)
	ErrCodeNetworkTimeout        = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeSourceUnavailable     = "ERR_302_SOURCE_UNAVAILABLE"
	ErrCodeSourceTransient       = "ERR_303_SOURCE_TRANSIENT"
	ErrCodeProviderDegraded      = "ERR_304_PROVIDER_DEGRADED"
	ErrCodeModerationUnavailable = "ERR_305_MODERATION_UNAVAILABLE"
	ErrCodeProviderRateLimited   = "ERR_306_PROVIDER_RATE_LIMITED"

	// Input errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery  = "ERR_403_INVALID_QUERY"
	ErrCodeQueryEmpty    = "ERR_404_QUERY_EMPTY"
	ErrCodeQueryTooLong  = "ERR_405_QUERY_TOO_LONG"
	ErrCodeInvalidRecord = "ERR_406_INVALID_RECORD"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "ERR_302_..." -> '3'
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategorySource
	case '4':
		return CategoryInput
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigInvalid, ErrCodeRulesInvalid, ErrCodeCatalogCorrupt:
		return SeverityFatal
	case ErrCodeProviderDegraded:
		return SeverityWarning
	case ErrCodeQueryEmpty:
		return SeverityInfo
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeSourceTransient, ErrCodeProviderRateLimited, ErrCodeCatalogLocked:
		return true
	default:
		return false
	}
}
