// Package logging provides the structured logger used across drvsetup.
//
// Core packages depend only on the Logger interface so they can be constructed
// without any logging in tests. The CLI builds a zap-backed implementation that
// writes human-readable lines to the console and, optionally, JSON lines to a
// log file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging for pipeline operations.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs warning-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
}

// Field keys shared by every component.
const (
	KeyComponent = "component"
	KeyRunID     = "runId"
	KeyEntry     = "entry"
	KeyURL       = "url"
	KeyFile      = "file"
	KeyAttempt   = "attempt"
	KeyExitCode  = "exitCode"
	KeyError     = "error"
)

type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return noopLogger{}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// With returns l with keysAndValues attached to every line. Zap loggers
// use their native child loggers; other implementations get the pairs
// prepended on each call.
func With(l Logger, keysAndValues ...interface{}) Logger {
	l = OrNop(l)
	if len(keysAndValues) == 0 {
		return l
	}
	switch v := l.(type) {
	case noopLogger:
		return v
	case *ZapLogger:
		return v.With(keysAndValues...)
	}
	return fieldLogger{next: l, fields: keysAndValues}
}

type fieldLogger struct {
	next   Logger
	fields []interface{}
}

func (f fieldLogger) merge(kv []interface{}) []interface{} {
	out := make([]interface{}, 0, len(f.fields)+len(kv))
	return append(append(out, f.fields...), kv...)
}

func (f fieldLogger) Debug(msg string, kv ...interface{}) { f.next.Debug(msg, f.merge(kv)...) }
func (f fieldLogger) Info(msg string, kv ...interface{})  { f.next.Info(msg, f.merge(kv)...) }
func (f fieldLogger) Warn(msg string, kv ...interface{})  { f.next.Warn(msg, f.merge(kv)...) }
func (f fieldLogger) Error(msg string, kv ...interface{}) { f.next.Error(msg, f.merge(kv)...) }

// Options configures New.
type Options struct {
	// Verbose enables debug-level output.
	Verbose bool
	// Format selects the console encoding: "text" (default) or "json".
	Format string
	// File, when non-empty, additionally appends JSON lines to this path.
	File string
}

// ZapLogger adapts a zap SugaredLogger to Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	// file is the log file opened by New; nil on child loggers.
	file *os.File
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.Sugar()}
}

func (z *ZapLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.sugar.Debugw(msg, keysAndValues...)
}

func (z *ZapLogger) Info(msg string, keysAndValues ...interface{}) {
	z.sugar.Infow(msg, keysAndValues...)
}

func (z *ZapLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.sugar.Warnw(msg, keysAndValues...)
}

func (z *ZapLogger) Error(msg string, keysAndValues ...interface{}) {
	z.sugar.Errorw(msg, keysAndValues...)
}

// With returns a child logger carrying the given key-value pairs on every line.
func (z *ZapLogger) With(keysAndValues ...interface{}) *ZapLogger {
	return &ZapLogger{sugar: z.sugar.With(keysAndValues...)}
}

// Component returns a child logger tagged with the component name.
func (z *ZapLogger) Component(name string) *ZapLogger {
	return z.With(KeyComponent, name)
}

// Sync flushes buffered log entries. Errors from syncing a terminal are ignored.
func (z *ZapLogger) Sync() {
	_ = z.sugar.Sync()
}

// Close flushes and closes the log file opened by New. Child loggers share
// the file but do not own it. Close is safe to call more than once.
func (z *ZapLogger) Close() error {
	z.Sync()
	if z.file == nil {
		return nil
	}
	err := z.file.Close()
	z.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// New builds the console (and optional file) logger.
func New(opts Options) (*ZapLogger, error) {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var consoleEnc zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		consoleEnc = zapcore.NewConsoleEncoder(encCfg)
	}

	var file *os.File
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stdout), level),
	}

	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level))
	}

	z := FromZap(zap.New(zapcore.NewTee(cores...)))
	z.file = file
	return z, nil
}

// ParseFormat normalizes a log format string, defaulting to "text".
func ParseFormat(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return "json"
	}
	return "text"
}
