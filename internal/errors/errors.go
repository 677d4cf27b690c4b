package errors

import (
	stderrors "errors"
	"fmt"
)

// ScoutError is the structured error type for gamescout.
// It carries enough context to decide propagation (fatal vs degraded),
// to log with structure, and to present an actionable message on the CLI.
type ScoutError struct {
	// Code is the unique error code (e.g., "ERR_302_SOURCE_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Source, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ScoutError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ScoutError) Unwrap() error {
	return e.Cause
}

// Is matches another ScoutError by code, so errors.Is works against sentinels.
func (e *ScoutError) Is(target error) bool {
	if t, ok := target.(*ScoutError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *ScoutError) WithDetail(key, value string) *ScoutError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ScoutError) WithSuggestion(suggestion string) *ScoutError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ScoutError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ScoutError {
	return &ScoutError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ScoutError from an existing error.
func Wrap(code string, err error) *ScoutError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is matching by code.
var (
	ErrSourceUnavailable     = &ScoutError{Code: ErrCodeSourceUnavailable}
	ErrProviderDegraded      = &ScoutError{Code: ErrCodeProviderDegraded}
	ErrConfiguration         = &ScoutError{Code: ErrCodeConfigInvalid}
	ErrRules                 = &ScoutError{Code: ErrCodeRulesInvalid}
	ErrQueryEmpty            = &ScoutError{Code: ErrCodeQueryEmpty}
	ErrNetworkTimeout        = &ScoutError{Code: ErrCodeNetworkTimeout}
	ErrModerationUnavailable = &ScoutError{Code: ErrCodeModerationUnavailable}
)

// ConfigError creates a configuration error. Fatal at startup.
func ConfigError(message string, cause error) *ScoutError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// RulesError creates a rule-table error. Fatal at load, never raised at query time.
func RulesError(message string, cause error) *ScoutError {
	return New(ErrCodeRulesInvalid, message, cause).
		WithSuggestion("fix the rules file and reload; the previous rules stay active")
}

// SourceUnavailable reports that the primary store could not serve a query.
func SourceUnavailable(message string, cause error) *ScoutError {
	return New(ErrCodeSourceUnavailable, message, cause).
		WithSuggestion("check that the catalog database is reachable")
}

// ProviderDegraded reports a non-fatal external provider failure.
func ProviderDegraded(message string, cause error) *ScoutError {
	return New(ErrCodeProviderDegraded, message, cause)
}

// TimeoutError creates a network timeout error. Timeouts are retryable.
func TimeoutError(message string, cause error) *ScoutError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// InputError creates an invalid-input error.
func InputError(message string, cause error) *ScoutError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ScoutError {
	return New(ErrCodeInternal, message, cause)
}

// as finds the first ScoutError in err's chain.
func as(err error) (*ScoutError, bool) {
	var se *ScoutError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryable reports whether any ScoutError in the chain is retryable.
func IsRetryable(err error) bool {
	if se, ok := as(err); ok {
		return se.Retryable
	}
	return false
}

// IsFatal reports whether the error has fatal severity.
func IsFatal(err error) bool {
	if se, ok := as(err); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code. Returns empty string if not a ScoutError.
func GetCode(err error) string {
	if se, ok := as(err); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category. Returns empty string if not a ScoutError.
func GetCategory(err error) Category {
	if se, ok := as(err); ok {
		return se.Category
	}
	return ""
}
