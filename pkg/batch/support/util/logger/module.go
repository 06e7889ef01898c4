package logger

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

// Module routes fx lifecycle events through the shared zap logger at debug level.
var Module = fx.Options(
	fx.WithLogger(func() fxevent.Logger {
		l := &fxevent.ZapLogger{Logger: Zap()}
		l.UseLogLevel(zapcore.DebugLevel)
		return l
	}),
)
