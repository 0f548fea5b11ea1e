package logging

import (
	"context"
	"fmt"
	"os"
	"time"
)

// NewDefaultLogger creates a console logger on stdout at LOG_LEVEL
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(LogConfig{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger configures the global logger from LOG_LEVEL, LOG_FORMAT and LOG_FILE.
// Without LOG_FILE the logger writes to stdout.
func InitGlobalLogger() {
	cfg := LogConfig{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: os.Getenv("LOG_FORMAT"),
	}

	logFile := os.Getenv("LOG_FILE")
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			panic(fmt.Sprintf("failed to open log file %s: %v", logFile, err))
		}
		cfg.Output = file
	}

	logger, err := NewZapLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		String("level", cfg.Level.String()),
		String("format", formatOrDefault(cfg.Format)),
		String("log_file", logFile),
	)
}

// MustSync flushes buffered entries of the global logger. Call before exit.
func MustSync() {
	if z, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = z.Sync()
	}
}

// WithContext is a convenience function to add context to the global logger
func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithFields is a convenience function to add fields to the global logger
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

func String(key, value string) Field                 { return Field{Key: key, Value: value} }
func Strings(key string, values []string) Field      { return Field{Key: key, Value: values} }
func Int(key string, value int) Field                { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field            { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field              { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }
func Time(key string, value time.Time) Field         { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field        { return Field{Key: key, Value: value} }

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// nopLogger discards everything. Useful in tests.
type nopLogger struct{}

// NewNopLogger returns a Logger that drops all entries
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field)               {}
func (nopLogger) Info(string, ...Field)                {}
func (nopLogger) Warn(string, ...Field)                {}
func (nopLogger) Error(string, error, ...Field)        {}
func (n nopLogger) WithFields(...Field) Logger         { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }

func formatOrDefault(f string) string {
	if f == "" {
		return "console"
	}
	return f
}
