package notification

import (
	"context"

	"go.uber.org/fx"

	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/ports"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// NewNotifier provides the ports.Notifier: always a LoggingNotifier, plus
// a KafkaNotifier when brokers are configured.
func NewNotifier(lc fx.Lifecycle, cfg *config.Config) ports.Notifier {
	kc := cfg.Arbo.Notification.Kafka
	if len(kc.Brokers) == 0 {
		return NewLoggingNotifier()
	}
	kn := NewKafkaNotifier(kc)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return kn.Close()
		},
	})
	logger.Infof("Notification: publishing job runs to Kafka topic %s (%d broker(s)).", kc.Topic, len(kc.Brokers))
	return MultiNotifier{NewLoggingNotifier(), kn}
}

// Module provides the job completion notifier.
var Module = fx.Options(
	fx.Provide(NewNotifier),
)
