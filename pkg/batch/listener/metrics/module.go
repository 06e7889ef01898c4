package metrics

import "go.uber.org/fx"

// Module decorates the provided metrics.MetricRecorder with the asynchronous wrapper.
var Module = fx.Options(
	fx.Decorate(NewAsyncMetricRecorderWrapper),
)
