package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoutError_Unwrap_PreservesCause(t *testing.T) {
	// Given: a store failure
	cause := stderrors.New("connection refused")

	// When: wrapping as SourceUnavailable
	err := SourceUnavailable("primary store unreachable", cause)

	// Then: the cause is still reachable
	require.NotNil(t, err)
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, stderrors.Is(err, cause))
}

func TestScoutError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigInvalid,
			message:  "cache.ttl must be positive",
			expected: "[ERR_102_CONFIG_INVALID] cache.ttl must be positive",
		},
		{
			name:     "source error",
			code:     ErrCodeSourceUnavailable,
			message:  "all sub-queries failed",
			expected: "[ERR_302_SOURCE_UNAVAILABLE] all sub-queries failed",
		},
		{
			name:     "input error",
			code:     ErrCodeQueryEmpty,
			message:  "query is empty",
			expected: "[ERR_404_QUERY_EMPTY] query is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestScoutError_Is_MatchesSentinelThroughWrapping(t *testing.T) {
	// Given: a SourceUnavailable error wrapped by fmt
	err := fmt.Errorf("search: %w", SourceUnavailable("down", nil))

	// Then: sentinel matching works through the chain
	assert.True(t, stderrors.Is(err, ErrSourceUnavailable))
	assert.False(t, stderrors.Is(err, ErrProviderDegraded))
}

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityFatal, false},
		{ErrCodeRulesInvalid, CategoryConfig, SeverityFatal, false},
		{ErrCodeCatalogWrite, CategoryStorage, SeverityError, false},
		{ErrCodeSourceUnavailable, CategorySource, SeverityError, false},
		{ErrCodeSourceTransient, CategorySource, SeverityWarning, true},
		{ErrCodeNetworkTimeout, CategorySource, SeverityWarning, true},
		{ErrCodeProviderDegraded, CategorySource, SeverityWarning, false},
		{ErrCodeQueryEmpty, CategoryInput, SeverityInfo, false},
		{ErrCodeInternal, CategoryInternal, SeverityError, false},
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

func TestHelpers_WorkThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("sub-query: %w", New(ErrCodeSourceTransient, "busy", nil))

	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsFatal(wrapped))
	assert.Equal(t, ErrCodeSourceTransient, GetCode(wrapped))
	assert.Equal(t, CategorySource, GetCategory(wrapped))

	plain := stderrors.New("plain")
	assert.False(t, IsRetryable(plain))
	assert.Equal(t, "", GetCode(plain))
	assert.True(t, IsFatal(RulesError("bad weights", nil)))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := SourceUnavailable("catalog unreachable", nil)

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: catalog unreachable")
	assert.Contains(t, out, "Hint:")
	assert.Contains(t, out, ErrCodeSourceUnavailable)
}

func TestFormatForCLI_WrapsPlainErrors(t *testing.T) {
	out := FormatForCLI(stderrors.New("boom"))

	assert.True(t, strings.HasPrefix(out, "Error: boom"))
	assert.Contains(t, out, ErrCodeInternal)
}

func TestLogAttrs_IncludesDetails(t *testing.T) {
	err := ProviderDegraded("provider timed out", stderrors.New("deadline exceeded")).
		WithDetail("query", "pokemon")

	attrs := LogAttrs(err)

	var rendered []string
	for _, a := range attrs {
		rendered = append(rendered, fmt.Sprint(a))
	}
	joined := strings.Join(rendered, " ")
	assert.Contains(t, joined, "error_code="+ErrCodeProviderDegraded)
	assert.Contains(t, joined, "detail_query=pokemon")
	assert.Contains(t, joined, "cause=deadline exceeded")
}
