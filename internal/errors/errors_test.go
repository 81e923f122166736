package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: Wrapping preserves the original cause
func TestRAGError_Unwrap_PreservesCause(t *testing.T) {
	// Given: an original error
	cause := errors.New("tokenizer exploded")

	// When: wrapping it as a chunking failure
	err := ChunkingError("section_2: medium segmentation failed", cause)

	// Then: the cause is reachable through the chain
	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestRAGError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *RAGError
		expected string
	}{
		{"chunking", ChunkingError("segmentation failed", nil), "[ERR_504_CHUNKING_FAILED] segmentation failed"},
		{"retrieval", RetrievalError("query cannot be empty", nil), "[ERR_503_RETRIEVAL_FAILED] query cannot be empty"},
		{"config", ConfigError("collection is required", nil), "[ERR_102_CONFIG_INVALID] collection is required"},
		{"indexing", IndexingError("add failed", nil), "[ERR_505_INDEX_FAILED] add failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestRAGError_Is_MatchesByCode(t *testing.T) {
	a := RetrievalError("query A failed", nil)
	b := RetrievalError("query B failed", nil)
	c := ChunkingError("section failed", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestCategoryAndSeverity_DerivedFromCode(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeCorruptIndex, CategoryIO, SeverityFatal, false},
		{ErrCodeIndexLocked, CategoryIO, SeverityWarning, true},
		{ErrCodeNetworkTimeout, CategoryNetwork, SeverityWarning, true},
		{ErrCodeQueryEmpty, CategoryValidation, SeverityError, false},
		{ErrCodeChunkingFailed, CategoryInternal, SeverityError, false},
		{"bogus", CategoryInternal, SeverityError, false},
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

func TestHelpers_SeeThroughFmtWrapping(t *testing.T) {
	// Given: a RAGError wrapped by fmt.Errorf
	inner := New(ErrCodeNetworkTimeout, "ollama timed out", nil).WithDetail("host", "localhost")
	outer := fmt.Errorf("embedding batch 3: %w", inner)

	// Then: helpers find the RAGError in the chain
	assert.Equal(t, ErrCodeNetworkTimeout, GetCode(outer))
	assert.Equal(t, CategoryNetwork, GetCategory(outer))
	assert.True(t, IsRetryable(outer))
	assert.False(t, IsFatal(outer))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

// ============================================================================
// Formatting
// ============================================================================

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := ConfigError("retrieval.top_k must be at least 1", nil).
		WithSuggestion("set retrieval.top_k in .claimrag.yaml")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: retrieval.top_k must be at least 1")
	assert.Contains(t, out, "Hint: set retrieval.top_k")
	assert.Contains(t, out, "Code: ERR_102_CONFIG_INVALID")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatForCLI_WrapsPlainErrors(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))
	assert.Contains(t, out, "Code: ERR_501_INTERNAL")
}

func TestFormatJSON_RoundTripsFields(t *testing.T) {
	err := IndexingError("store failed", errors.New("disk full")).WithDetail("collection", "summary_index")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeIndexFailed, decoded["code"])
	assert.Equal(t, "disk full", decoded["cause"])
	assert.Equal(t, "summary_index", decoded["details"].(map[string]any)["collection"])
}

func TestLogAttrs_FlattensDetails(t *testing.T) {
	err := RetrievalError("query failed", nil).WithDetail("query", "what happened")
	attrs := LogAttrs(err)

	assert.Contains(t, attrs, "detail_query")
	assert.Contains(t, attrs, ErrCodeRetrievalFailed)
	assert.Equal(t, []any{"error", "plain"}, LogAttrs(errors.New("plain")))
}

// ============================================================================
// Retry
// ============================================================================

func fastRetry(n int) RetryConfig {
	return RetryConfig{MaxRetries: n, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAndWrapsLastError(t *testing.T) {
	last := errors.New("still down")
	calls := 0
	err := Retry(context.Background(), fastRetry(2), func() error {
		calls++
		return last
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, last)
}

func TestRetry_ShouldRetryStopsEarly(t *testing.T) {
	cfg := fastRetry(5)
	cfg.ShouldRetry = IsRetryable

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return ValidationError("bad input", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithResult_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RetryWithResult(ctx, fastRetry(3), func() (int, error) {
		return 42, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================================
// Circuit breaker
// ============================================================================

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker that trips after 2 failures
	cb := NewCircuitBreaker("summarizer", WithMaxFailures(2), WithResetTimeout(time.Hour))

	// When: two calls fail
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errors.New("llm down") })
	}

	// Then: further calls are rejected without running
	assert.Equal(t, StateOpen, cb.State())
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("summarizer", WithMaxFailures(1), WithResetTimeout(time.Minute))
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errors.New("fail") })
	require.Equal(t, StateOpen, cb.State())

	// When: the reset timeout elapses
	now = now.Add(2 * time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())

	// Then: a failing probe re-opens the circuit
	_ = cb.Execute(func() error { return errors.New("still failing") })
	assert.Equal(t, StateOpen, cb.State())

	// And: a successful probe later closes it
	now = now.Add(2 * time.Minute)
	v, err := CircuitExecute(cb, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
