package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeSearchQueryFailed, 3},
		{ErrCodeDatabaseConnectionFailed, 3},
		{ErrCodeEmbeddingFailed, 2},
		{ErrCodeLLMTimeout, 1},
		{ErrCodeCodeValidationFailed, 0},
		{ErrCodeInvalidInput, 0},
		{ErrorCode("SOMETHING_ELSE"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
			assert.Equal(t, tt.want > 0, IsRetryableErrorCode(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewSearchQueryFailedError("knn", fmt.Errorf("boom"))
	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "SEARCH_QUERY_FAILED", bpmnErr.Code)
	assert.Equal(t, 3, bpmnErr.Retries)
	assert.True(t, bpmnErr.Retryable)
	assert.Contains(t, bpmnErr.Details, "queryType: knn")

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "SEARCH_QUERY_FAILED", vars["errorCode"])
	assert.Equal(t, "SEARCH_QUERY_FAILED", vars["originalErrorCode"])
}

func TestConvertToBPMNError_NonRetryableHasNoRetries(t *testing.T) {
	stdErr := NewCodeValidationFailedError("code validation failed: too short")
	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, 0, bpmnErr.Retries)
	assert.False(t, bpmnErr.Retryable)
}

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("stage failed: %w", NewEmbeddingFailedError(fmt.Errorf("quota")))
	got := Normalize(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeEmbeddingFailed, got.Code)

	plain := Normalize(fmt.Errorf("plain"))
	assert.Equal(t, ErrCodeInternalError, plain.Code)
	assert.Equal(t, "plain", plain.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "ANALYSIS", GetErrorCategory(ErrCodeCodeExecutionFailed))
	assert.Equal(t, "ANALYSIS", GetErrorCategory(ErrCodeNoResultAssigned))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeLLMTimeout))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexNotFound))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatasetUnavailable))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternalError))
}

func TestStandardError_WithMetadata(t *testing.T) {
	err := NewInvalidInputError("question is required").WithMetadata("field", "question")
	assert.Equal(t, "question", err.Metadata["field"])
	assert.Equal(t, "StandardError[INVALID_INPUT]: Invalid job input", err.Error())
}
