// Package repository persists collected records, predictions and job runs
// through the gorm-backed database adapter.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database"
	batchrepo "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/repository"
)

// wrap tags err with op. Connectivity failures wrap ErrStorageUnavailable.
func wrap(classifier database.ErrorClassifier, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, batchrepo.ErrStorageUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if classifier != nil && classifier.IsConnectionError(err) {
		return fmt.Errorf("%s: %w: %v", op, batchrepo.ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
