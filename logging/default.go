package logging

import (
	"context"
	"maps"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogger is a structured logger backed by zap.
// Debug/Info -> stdout
// Warn/Error/Fatal -> stderr
type DefaultLogger struct {
	zl     *zap.Logger
	level  zap.AtomicLevel
	fields Fields
}

// NewDefaultLogger creates a console logger, colored when stdout is a terminal
func NewDefaultLogger() *DefaultLogger {
	return newConsoleLogger(isTerminal())
}

// NewDefaultLoggerNoColor creates a console logger without colored levels
func NewDefaultLoggerNoColor() *DefaultLogger {
	return newConsoleLogger(false)
}

// NewLoggerFromCore wraps an existing zap core, e.g. a JSON core or an observer in tests
func NewLoggerFromCore(core zapcore.Core, level Level) *DefaultLogger {
	atom := zap.NewAtomicLevelAt(level.zapLevel())
	return &DefaultLogger{
		zl:     zap.New(&levelCore{Core: core, level: atom}),
		level:  atom,
		fields: make(Fields),
	}
}

func newConsoleLogger(colors bool) *DefaultLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if colors {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	enc := zapcore.NewConsoleEncoder(encCfg)

	atom := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return atom.Enabled(l) && l < zapcore.WarnLevel
	})
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return atom.Enabled(l) && l >= zapcore.WarnLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), low),
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), high),
	)

	return &DefaultLogger{
		zl:     zap.New(core),
		level:  atom,
		fields: make(Fields),
	}
}

// levelCore gates an arbitrary core behind the logger's atomic level
type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *levelCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l) && c.Core.Enabled(l)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// isTerminal checks if stdout is a character device
func isTerminal() bool {
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func toZapFields(preset Fields, extra []Fields) []zap.Field {
	all := make(Fields, len(preset))
	maps.Copy(all, preset)
	for _, f := range extra {
		maps.Copy(all, f)
	}

	out := make([]zap.Field, 0, len(all))
	for k, v := range all {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.zl.Debug(msg, toZapFields(d.fields, fields)...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.zl.Info(msg, toZapFields(d.fields, fields)...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.zl.Warn(msg, toZapFields(d.fields, fields)...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.zl.Error(msg, append(toZapFields(d.fields, fields), zap.Error(err))...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.zl.Fatal(msg, append(toZapFields(d.fields, fields), zap.Error(err))...)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields, len(d.fields)+len(fields))
	maps.Copy(newFields, d.fields)
	maps.Copy(newFields, fields)

	return &DefaultLogger{
		zl:     d.zl,
		level:  d.level,
		fields: newFields,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

// SetLevel changes the level for this logger and every logger derived from it
func (d *DefaultLogger) SetLevel(level Level) {
	d.level.SetLevel(level.zapLevel())
}

// Sync flushes buffered entries
func (d *DefaultLogger) Sync() error {
	return d.zl.Sync()
}

// NoOpLogger is a logger that does nothing, used when logging is disabled and in tests
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
