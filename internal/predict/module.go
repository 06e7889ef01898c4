package predict

import (
	"fmt"

	"go.uber.org/fx"

	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// NewModel builds the configured model.
func NewModel(cfg *config.Config) (Model, error) {
	mc := cfg.Arbo.Model
	switch mc.Type {
	case "", "baseline":
		m, err := NewBaseline(mc.Version, mc.Params)
		if err != nil {
			return nil, err
		}
		logger.Infof("Using baseline model %s (min history %d).", m.Version(), m.MinHistory())
		return m, nil
	case "remote":
		minHistory := DefaultBaselineParams().MinHistory
		if v, ok := mc.Params["min_history"].(int); ok {
			minHistory = v
		}
		logger.Infof("Using remote model at %s.", mc.URL)
		return NewRemote(mc.URL, mc.Version, minHistory, mc.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", mc.Type)
	}
}

// Module provides the Model.
var Module = fx.Provide(NewModel)
