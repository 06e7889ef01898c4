// Package listener aggregates the observers of job runs: metrics, tracing and notifications.
package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/listener/metrics"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/listener/notification"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/listener/tracing"
)

// Module aggregates all listener modules.
var Module = fx.Options(
	metrics.Module,
	tracing.Module,
	notification.Module,
)
