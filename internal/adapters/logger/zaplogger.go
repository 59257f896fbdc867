package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swingTrader/internal/ports"
)

// ZapLogger implements the ports.Logger interface on zap.
type ZapLogger struct {
	z *zap.Logger
}

// New builds a JSON logger writing to stderr and, when logDir is set, to a
// per-day file swingtrader_YYYYMMDD.log in logDir. Unknown levels fall back
// to info.
func New(level, logDir string, day time.Time) (*ZapLogger, error) {
	config := zap.NewProductionConfig()

	l, err := zapcore.ParseLevel(level)
	if err != nil {
		l = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(l)
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Sampling = nil

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
		config.OutputPaths = append(config.OutputPaths, FilePath(logDir, day))
	}

	z, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &ZapLogger{z: z}, nil
}

// NewFromZap wraps an existing zap logger.
func NewFromZap(z *zap.Logger) *ZapLogger {
	return &ZapLogger{z: z}
}

// FilePath returns the log file for day.
func FilePath(logDir string, day time.Time) string {
	return filepath.Join(logDir, "swingtrader_"+day.Format("20060102")+".log")
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.z.Sync()
}

func (l *ZapLogger) fields(ctx context.Context, err error, fields []map[string]interface{}) []zap.Field {
	var out []zap.Field
	if ctx != nil {
		if id := ports.RunID(ctx); id != "" {
			out = append(out, zap.String("run_id", id))
		}
	}
	if err != nil {
		out = append(out, zap.Error(err))
	}
	for _, m := range fields {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, zap.Any(k, m[k]))
		}
	}
	return out
}

// Debug logs a message at Debug level.
func (l *ZapLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.z.Debug(msg, l.fields(ctx, nil, fields)...)
}

// Info logs a message at Info level.
func (l *ZapLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.z.Info(msg, l.fields(ctx, nil, fields)...)
}

// Warn logs a message at Warning level.
func (l *ZapLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.z.Warn(msg, l.fields(ctx, nil, fields)...)
}

// Error logs an error message at Error level.
func (l *ZapLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.z.Error(msg, l.fields(ctx, err, fields)...)
}

var _ ports.Logger = (*ZapLogger)(nil)
