package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RedactedValue replaces the value of any field whose key names a credential
const RedactedValue = "***REDACTED***"

var sensitiveKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"password":      true,
	"secret":        true,
	"token":         true,
}

// ZapAdapter implements Logger on top of zap
type ZapAdapter struct {
	logger *zap.Logger
	level  zap.AtomicLevel
}

// NewZapLogger builds a console or JSON logger writing to config.Output,
// stdout when unset
func NewZapLogger(config LogConfig) (Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewConsoleEncoder(encCfg)
	if strings.EqualFold(config.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	sink := zapcore.Lock(os.Stdout)
	if config.Output != nil {
		sink = zapcore.AddSync(config.Output)
	}

	level := zap.NewAtomicLevelAt(toZapLevel(config.Level))
	logger := zap.New(zapcore.NewCore(encoder, sink, level), zap.AddCaller(), zap.AddCallerSkip(1))
	if config.Name != "" {
		logger = logger.Named(config.Name)
	}
	return &ZapAdapter{logger: logger, level: level}, nil
}

func (z *ZapAdapter) Debug(msg string, fields ...Field) { z.logger.Debug(msg, toZapFields(fields)...) }
func (z *ZapAdapter) Info(msg string, fields ...Field)  { z.logger.Info(msg, toZapFields(fields)...) }
func (z *ZapAdapter) Warn(msg string, fields ...Field)  { z.logger.Warn(msg, toZapFields(fields)...) }

func (z *ZapAdapter) Error(msg string, err error, fields ...Field) {
	zf := toZapFields(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	z.logger.Error(msg, zf...)
}

// WithFields returns a child logger carrying fields
func (z *ZapAdapter) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return z
	}
	return &ZapAdapter{logger: z.logger.With(toZapFields(fields)...), level: z.level}
}

// WithContext returns a child logger carrying the request id and subject
// stored in ctx. Without either it returns z itself.
func (z *ZapAdapter) WithContext(ctx context.Context) Logger {
	var fields []zap.Field
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if subject, ok := ctx.Value(subjectKey).(string); ok && subject != "" {
		fields = append(fields, zap.String("subject", subject))
	}
	if len(fields) == 0 {
		return z
	}
	return &ZapAdapter{logger: z.logger.With(fields...), level: z.level}
}

// SetLevel changes the level of z and every logger derived from it
func (z *ZapAdapter) SetLevel(level LogLevel) {
	z.level.SetLevel(toZapLevel(level))
}

func (z *ZapAdapter) Sync() error {
	return z.logger.Sync()
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, toZapField(f))
	}
	return out
}

func toZapField(f Field) zap.Field {
	if sensitiveKeys[strings.ToLower(f.Key)] {
		return zap.String(f.Key, RedactedValue)
	}
	switch v := f.Value.(type) {
	case string:
		return zap.String(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case int64:
		return zap.Int64(f.Key, v)
	case bool:
		return zap.Bool(f.Key, v)
	case time.Duration:
		return zap.Duration(f.Key, v)
	case time.Time:
		return zap.Time(f.Key, v)
	case []string:
		return zap.Strings(f.Key, v)
	case error:
		return zap.NamedError(f.Key, v)
	default:
		return zap.Any(f.Key, v)
	}
}
