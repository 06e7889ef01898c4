package exception

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchError_ErrorAndUnwrap(t *testing.T) {
	orig := errors.New("boom")
	err := NewBatchError("source", "fetch failed", orig, false, true)

	assert.Equal(t, "[source] fetch failed: boom", err.Error())
	assert.ErrorIs(t, err, orig)
	assert.True(t, err.IsRetryable())
	assert.False(t, err.IsSkippable())
	assert.NotEmpty(t, err.StackTrace)

	noCause := NewBatchError("config", "missing value", nil, false, false)
	assert.Equal(t, "[config] missing value", noCause.Error())
}

func TestClassificationHelpers(t *testing.T) {
	retryable := fmt.Errorf("wrapped: %w", NewBatchError("source", "429", nil, false, true))
	skippable := NewBatchError("normalize", "bad record", nil, true, false)
	fatal := NewBatchError("repository", "down", nil, false, false)

	assert.True(t, IsRetryable(retryable))
	assert.False(t, IsSkippable(retryable))
	assert.True(t, IsSkippable(skippable))
	assert.True(t, IsFatal(fatal))
	assert.False(t, IsFatal(nil))

	assert.True(t, IsRetryable(errors.New("dial tcp: i/o timeout")))
	assert.False(t, IsRetryable(errors.New("syntax error")))

	assert.True(t, IsBatchError(retryable))
	assert.False(t, IsBatchError(errors.New("plain")))
}
