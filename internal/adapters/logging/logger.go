// Package logging wraps a zap sugared logger with the key/value call style
// used across the daemon.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin, nil-safe wrapper over *zap.SugaredLogger. A nil *Logger
// discards everything, so components can be constructed without one.
type Logger struct {
	logger *zap.SugaredLogger
}

// Options configures New.
type Options struct {
	Level   string // debug, info, warn, error (default info)
	File    string // optional log file, created with its parent dir
	Console bool   // also write to stderr
}

// New builds a JSON production logger with ISO8601 timestamps under "time".
func New(opts Options) (*Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Sampling = nil

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}
	config.Level = zap.NewAtomicLevelAt(level)

	config.OutputPaths = nil
	config.ErrorOutputPaths = []string{"stderr"}
	if opts.Console {
		config.OutputPaths = append(config.OutputPaths, "stderr")
	}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		config.OutputPaths = append(config.OutputPaths, opts.File)
	}
	if len(config.OutputPaths) == 0 {
		return Nop(), nil
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{logger: logger.Sugar()}, nil
}

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(l *zap.Logger) *Logger {
	return &Logger{logger: l.Sugar()}
}

// Nop returns a logger that discards all output.
func Nop() *Logger {
	return &Logger{logger: zap.NewNop().Sugar()}
}

// With returns a child logger that always includes keyvals.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{logger: l.logger.With(keyvals...)}
}

// Info logs an info message
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	if l == nil {
		return
	}
	l.logger.Infow(msg, keyvals...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	if l == nil {
		return
	}
	l.logger.Errorw(msg, keyvals...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	if l == nil {
		return
	}
	l.logger.Debugw(msg, keyvals...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	if l == nil {
		return
	}
	l.logger.Warnw(msg, keyvals...)
}

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func (l *Logger) Sync() {
	if l == nil {
		return
	}
	_ = l.logger.Sync()
}
