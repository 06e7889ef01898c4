// Package skip decides whether a record-level error may be skipped.
package skip

import (
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/exception"
)

// SkipPolicy decides, per error, whether the failed item is dropped and the
// batch continues. A policy instance tracks one batch.
type SkipPolicy interface {
	// ShouldSkip reports whether err may be skipped within the remaining budget.
	ShouldSkip(err error) bool
	// IncrementSkipCount records one skipped item.
	IncrementSkipCount()
	// GetSkipCount returns the number of items skipped so far.
	GetSkipCount() int
	// GetSkipLimit returns the budget; zero or less is unlimited.
	GetSkipLimit() int
}

// LimitSkipPolicy skips errors flagged skippable until the limit is reached.
type LimitSkipPolicy struct {
	skipLimit        int
	currentSkipCount int
}

// NewLimitSkipPolicy creates a policy allowing skipLimit skips. Zero or less is unlimited.
func NewLimitSkipPolicy(skipLimit int) *LimitSkipPolicy {
	return &LimitSkipPolicy{skipLimit: skipLimit}
}

// ShouldSkip returns true for skippable BatchErrors while under the limit.
func (p *LimitSkipPolicy) ShouldSkip(err error) bool {
	if err == nil || !exception.IsSkippable(err) {
		return false
	}
	return p.skipLimit <= 0 || p.currentSkipCount < p.skipLimit
}

func (p *LimitSkipPolicy) IncrementSkipCount() {
	p.currentSkipCount++
}

func (p *LimitSkipPolicy) GetSkipCount() int {
	return p.currentSkipCount
}

func (p *LimitSkipPolicy) GetSkipLimit() int {
	return p.skipLimit
}

var _ SkipPolicy = (*LimitSkipPolicy)(nil)
