package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), ErrCodeTimeout, "timed out"},
		{"canceled", context.Canceled, ErrCodeTimeout, "canceled"},
		{"plain", errors.New("boom"), ErrCodeInternalError, "Internal server error."},
		{
			"missing index",
			ragerrors.New(ragerrors.ErrCodeFileNotFound, "no index found", nil).WithSuggestion("run claimrag index first"),
			ErrCodeIndexNotFound, "no index found. run claimrag index first",
		},
		{"embedding", ragerrors.New(ragerrors.ErrCodeEmbeddingFailed, "ollama down", nil), ErrCodeEmbeddingFailed, "ollama down"},
		{"validation", ragerrors.ValidationError("bad level", nil), ErrCodeInvalidParams, "bad level"},
		{"network", ragerrors.NetworkError("unreachable", nil), ErrCodeTimeout, "unreachable"},
		{"store", ragerrors.New(ragerrors.ErrCodeStoreFailed, "disk full", nil), ErrCodeInternalError, "disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)

			assert.Equal(t, tt.wantCode, got.Code)
			assert.Contains(t, got.Message, tt.wantMsg)
		})
	}
	assert.Nil(t, MapError(nil))
}

func TestMCPError_Error(t *testing.T) {
	err := NewMethodNotFoundError("search_code")

	assert.Equal(t, "MCP error -32601: Tool 'search_code' not found.", err.Error())
}
