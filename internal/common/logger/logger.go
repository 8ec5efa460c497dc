package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	initOnce sync.Once
	root     *zap.Logger
)

func rootLogger() *zap.Logger {
	initOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		if os.Getenv("LOG_MODE") == "development" {
			cfg = zap.NewDevelopmentConfig()
		}
		cfg.OutputPaths = []string{"stdout"}
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		lg, err := cfg.Build(zap.WithCaller(false))
		if err != nil {
			lg = zap.NewNop()
		}
		host, _ := os.Hostname()
		root = lg.With(zap.String("hostname", host))
	})
	return root
}

// Logger emits one JSON line per event: an action name plus free-form fields.
type Logger struct {
	service string
	zl      *zap.Logger
}

func New(service string) *Logger {
	return &Logger{service: service, zl: rootLogger().With(zap.String("service", service))}
}

func (l *Logger) fields(action string, extra map[string]any) []zap.Field {
	fs := make([]zap.Field, 0, len(extra)+1)
	fs = append(fs, zap.String("action", action))
	for k, v := range extra {
		fs = append(fs, zap.Any(k, v))
	}
	return fs
}

func (l *Logger) Info(action string, extra map[string]any) {
	l.zl.Info(action, l.fields(action, extra)...)
}

func (l *Logger) Debug(action string, extra map[string]any) {
	l.zl.Debug(action, l.fields(action, extra)...)
}

func (l *Logger) Error(action string, err error, extra map[string]any) {
	fs := l.fields(action, extra)
	if err != nil {
		fs = append(fs, zap.String("error", err.Error()))
	}
	l.zl.Error(action, fs...)
}

// Sync flushes buffered entries; call before process exit.
func Sync() {
	if root != nil {
		_ = root.Sync()
	}
}
