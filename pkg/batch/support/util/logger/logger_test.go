package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogLevel(t *testing.T) {
	defer SetLogLevel("INFO")

	cases := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		" Warn ":  LevelWarn,
		"ERROR":   LevelError,
		"fatal":   LevelFatal,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		SetLogLevel(in)
		assert.Equal(t, want, GetLogLevel(), "level %q", in)
	}
}

func TestSetFormatRebuildsLogger(t *testing.T) {
	defer SetFormat("json")

	before := Zap()
	SetFormat("console")
	assert.NotSame(t, before, Zap())

	same := Zap()
	SetFormat("console")
	assert.Same(t, same, Zap())

	assert.NotPanics(t, func() {
		Debugf("debug %d", 1)
		Infof("info %s", "x")
		Warnf("warn")
		Errorf("error %v", assert.AnError)
	})
}
