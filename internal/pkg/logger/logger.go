package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"DBAdminDO/internal/pkg/config"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global logger instance. It discards everything until Init runs.
var Log = zap.NewNop()

// Init replaces the global logger according to cfg.Logs
func Init(cfg *config.Config) error {
	if !cfg.Logs.Enabled {
		Log = zap.NewNop()
		return nil
	}

	level, err := getLogLevel(cfg.Logs.Level)
	if err != nil {
		return err
	}

	sinks, err := writers(cfg)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(encoder(cfg.Logs.Format), zapcore.NewMultiWriteSyncer(sinks...), zap.NewAtomicLevelAt(level))

	// CallerSkip(1) reports the caller of the wrapper functions below
	Log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("app", cfg.AppName))

	Log.Info("Logger initialized",
		zap.String("level", level.String()),
		zap.String("format", cfg.Logs.Format),
		zap.Int("sinks", len(sinks)))
	return nil
}

func encoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// writers returns the rotated file sink and/or stdout, falling back to stderr
func writers(cfg *config.Config) ([]zapcore.WriteSyncer, error) {
	var sinks []zapcore.WriteSyncer

	if cfg.Logs.FilePath != "" {
		if err := os.MkdirAll(cfg.Logs.FilePath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(cfg.Logs.FilePath, cfg.AppName+".log"),
			MaxSize:    cfg.Logs.MaxSizeMB,
			MaxBackups: cfg.Logs.MaxBackups,
			MaxAge:     cfg.Logs.MaxAgeDays,
			Compress:   cfg.Logs.Compress,
		}))
	}

	if cfg.Logs.Stdout {
		sinks = append(sinks, zapcore.AddSync(os.Stdout))
	}

	if len(sinks) == 0 {
		sinks = append(sinks, zapcore.AddSync(os.Stderr))
	}
	return sinks, nil
}

// Sync flushes any buffered log entries
func Sync() error {
	return Log.Sync()
}

func getLogLevel(levelStr string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(levelStr))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", levelStr)
	}
	return level, nil
}

// DebugEnabled reports whether debug entries are written, so callers can skip
// building expensive fields
func DebugEnabled() bool {
	return Log.Core().Enabled(zapcore.DebugLevel)
}

// Debug logs a message at DebugLevel with structured fields
func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

// Info logs a message at InfoLevel with structured fields
func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

// Warn logs a message at WarnLevel with structured fields
func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

// Error logs a message at ErrorLevel with structured fields
func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

// Fatal logs a message at FatalLevel, then calls os.Exit(1)
func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

// Field creation helpers
func String(key, value string) zap.Field { return zap.String(key, value) }

func Int(key string, value int) zap.Field { return zap.Int(key, value) }

func Strings(key string, values []string) zap.Field { return zap.Strings(key, values) }

func Int64(key string, value int64) zap.Field { return zap.Int64(key, value) }

func Duration(key string, value time.Duration) zap.Field { return zap.Duration(key, value) }

// Err attaches an error under the "error" key
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Database tags a log line with the managed database it concerns
func Database(uuid, engine string) zap.Field {
	return zap.Dict("database", zap.String("uuid", uuid), zap.String("engine", engine))
}
