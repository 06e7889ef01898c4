package predict

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/exception"
)

const moduleName = "predict"

// ErrPredictionFailure marks a location whose score could not be produced.
var ErrPredictionFailure = errors.New("prediction failure")

// Model scores a Series with a risk in [0, 1].
type Model interface {
	// Version is stored with every prediction.
	Version() string
	// MinHistory is the fewest points Predict accepts.
	MinHistory() int
	Predict(ctx context.Context, s Series) (float64, error)
}

func failure(msg string, err error) error {
	if err == nil {
		err = ErrPredictionFailure
	} else {
		err = fmt.Errorf("%w: %v", ErrPredictionFailure, err)
	}
	return exception.NewBatchError(moduleName, msg, err, false, false)
}

// Score calls m and checks that the result is a probability.
func Score(ctx context.Context, m Model, s Series) (float64, error) {
	if len(s.Points) < m.MinHistory() {
		return 0, failure(fmt.Sprintf("%s: %d point(s), need %d", s.LocationCode, len(s.Points), m.MinHistory()), nil)
	}
	score, err := m.Predict(ctx, s)
	if err != nil {
		if errors.Is(err, ErrPredictionFailure) {
			return 0, err
		}
		return 0, failure(fmt.Sprintf("%s: model %s failed", s.LocationCode, m.Version()), err)
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, failure(fmt.Sprintf("%s: score %v outside [0, 1]", s.LocationCode, score), nil)
	}
	return score, nil
}
