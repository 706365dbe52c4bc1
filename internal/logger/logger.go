// Package logger wraps zap behind package-level helpers. The engine is
// embeddable, so by default nothing is logged until the embedder calls
// Init (or Nop in tests).
package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Level names accepted by Config.Level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls the sink and rotation of the engine log.
type Config struct {
	Level      Level
	OutputPath string // empty = stderr only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Init installs a real logger. Safe to call more than once; the last
// call wins.
func Init(cfg Config) error {
	var level zapcore.Level
	switch cfg.Level {
	case DebugLevel:
		level = zapcore.DebugLevel
	case WarnLevel:
		level = zapcore.WarnLevel
	case ErrorLevel:
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	stderrCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stderr),
		level,
	)

	core := stderrCore
	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
			return err
		}
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.OutputPath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileWriter, level)
		core = zapcore.NewTee(stderrCore, fileCore)
	}

	mu.Lock()
	global = zap.New(core)
	mu.Unlock()
	return nil
}

// Nop silences all logging.
func Nop() {
	mu.Lock()
	global = zap.NewNop()
	mu.Unlock()
}

// Set installs an externally built logger (embedders that already run
// zap can share their core).
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	global = l
	mu.Unlock()
}

func get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

func Debug(msg string, fields ...zap.Field) { get().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { get().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { get().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { get().Error(msg, fields...) }

// Sync flushes buffered log entries.
func Sync() {
	_ = get().Sync()
}
