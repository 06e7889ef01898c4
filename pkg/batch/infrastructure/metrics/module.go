package metrics

import (
	"go.uber.org/fx"

	metrics "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/metrics"
)

// Module provides the PrometheusRecorder, also as metrics.MetricRecorder.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(func(r *PrometheusRecorder) metrics.MetricRecorder { return r }),
)
