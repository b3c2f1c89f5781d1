package camunda

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insight-workers/internal/common/errors"
)

var fastRetry = &RetryConfig{
	MaxRetries: 2,
	BaseDelay:  time.Millisecond,
	MaxDelay:   5 * time.Millisecond,
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	calls := 0
	got, err := ExecuteWithRetry(context.Background(), fastRetry, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("rpc error: code = Unavailable desc = connection refused")
		}
		return "ok", nil
	}, "topology")

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := ExecuteWithRetry(context.Background(), fastRetry, func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("process definition not found")
	}, "create-instance")

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeInvalidInput, stdErr.Code)
	assert.Contains(t, stdErr.Details, "create-instance")
}

func TestExecuteWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	_, err := ExecuteWithRetry(context.Background(), fastRetry, func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("deadline exceeded")
	}, "create-instance")

	require.Error(t, err)
	assert.Equal(t, fastRetry.MaxRetries+1, calls)

	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeInternalError, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(fmt.Errorf("Connection Reset by peer")))
	assert.True(t, isRetryableZeebeError(fmt.Errorf("context deadline exceeded")))
	assert.False(t, isRetryableZeebeError(fmt.Errorf("permission denied")))
}
