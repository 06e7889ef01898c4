package skip

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/exception"
)

func TestLimitSkipPolicy(t *testing.T) {
	skippable := exception.NewBatchError("normalize", "malformed record", nil, true, false)

	p := NewLimitSkipPolicy(2)
	assert.False(t, p.ShouldSkip(nil))
	assert.False(t, p.ShouldSkip(errors.New("plain")))

	for i := 0; i < 2; i++ {
		assert.True(t, p.ShouldSkip(skippable))
		p.IncrementSkipCount()
	}
	assert.False(t, p.ShouldSkip(skippable))
	assert.Equal(t, 2, p.GetSkipCount())
}

func TestLimitSkipPolicy_Unlimited(t *testing.T) {
	skippable := exception.NewBatchError("normalize", "malformed record", nil, true, false)
	p := NewLimitSkipPolicy(0)
	for i := 0; i < 100; i++ {
		p.IncrementSkipCount()
	}
	assert.True(t, p.ShouldSkip(skippable))
}
