package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

var globalLogger *slog.Logger // один глобальный логгер поверх zap

// NewZapLogger builds the root zap logger.
// format "json" selects the production encoder, anything else the console one.
func NewZapLogger(level, format, outputPath string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	parsedLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(parsedLevel)

	if outputPath != "" && outputPath != "stdout" {
		zapConfig.OutputPaths = []string{outputPath}
	}

	l, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return l, nil
}

// InitSlog routes the global slog logger (and slog.Default) into the zap core.
// Level filtering is done by the zap core.
func InitSlog(zapLogger *zap.Logger) {
	globalLogger = slog.New(zapslog.NewHandler(zapLogger.Core()))
	slog.SetDefault(globalLogger)
}

// ensureInitialized проверяет, инициализирован ли логгер.
func ensureInitialized() {
	if globalLogger == nil {
		globalLogger = slog.Default()
	}
}

// Debug logs a message at DebugLevel.
func Debug(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelDebug) {
		globalLogger.Debug(msg, args...)
	}
}

// Info logs a message at InfoLevel.
func Info(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Info(msg, args...)
}

// Warn logs a message at WarnLevel.
func Warn(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Warn(msg, args...)
}

// Error logs a message at ErrorLevel.
func Error(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Error(msg, args...)
}

// Fatal logs a message at ErrorLevel then exits.
func Fatal(msg string, args ...any) {
	ensureInitialized()
	// Логируем всегда перед выходом, т.к. это Fatal
	globalLogger.Error(msg, args...)
	os.Exit(1)
}
