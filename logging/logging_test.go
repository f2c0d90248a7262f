package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level Level) (*DefaultLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLoggerFromCore(core, level), logs
}

func TestDefaultLoggerRespectsLevel(t *testing.T) {
	logger, logs := newObserved(WarnLevel)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)

	logger.SetLevel(DebugLevel)
	logger.Debug("now visible")
	assert.Equal(t, 2, logs.Len())
}

func TestDefaultLoggerFields(t *testing.T) {
	logger, logs := newObserved(DebugLevel)

	scoped := logger.WithFields(Fields{"component": "capture_session"})
	scoped.Error(errors.New("device stalled"), "read failed", Fields{"samples": 512})

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "capture_session", ctx["component"])
	assert.EqualValues(t, 512, ctx["samples"])
	assert.Equal(t, "device stalled", ctx["error"])

	// parent is untouched
	logger.Info("plain")
	assert.NotContains(t, logs.All()[1].ContextMap(), "component")
}

func TestDerivedLoggerSharesLevel(t *testing.T) {
	logger, logs := newObserved(InfoLevel)
	child := logger.WithFields(Fields{"function": "ReadWindow"})

	logger.SetLevel(ErrorLevel)
	child.Info("suppressed")
	assert.Equal(t, 0, logs.Len())
}

func TestWithContextExtractsFields(t *testing.T) {
	logger, logs := newObserved(DebugLevel)
	ctx := ContextWithFields(context.Background(), Fields{"session": "mic-0"})

	logger.WithContext(ctx).Info("hello")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "mic-0", logs.All()[0].ContextMap()["session"])

	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
		"fatal":   FatalLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetGlobalLoggerNil(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	SetGlobalLogger(nil)
	_, ok := GetGlobalLogger().(*NoOpLogger)
	assert.True(t, ok)
}
