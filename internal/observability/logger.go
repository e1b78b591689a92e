// Package observability wires the application loggers. CLI commands get a
// human-readable console logger; the status server gets structured JSON.
package observability

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// CLILogger is used for CLI commands.
	CLILogger *zap.Logger

	// ServerLogger is used for the HTTP status server.
	ServerLogger *zap.Logger
)

// InitCLILogger initializes the CLI logger. format selects the encoder:
// "json" for machine-readable output, anything else for the human console.
func InitCLILogger(level, format string, verbose bool) {
	logger, err := cliConfig(level, format, verbose).Build()
	if err != nil {
		logger = zap.NewNop()
	}
	CLILogger = logger
}

func cliConfig(level, format string, verbose bool) zap.Config {
	var cfg zap.Config
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	return cfg
}

// InitServerLogger initializes the server logger with JSON output and a
// static service field.
func InitServerLogger(serviceName string, level string) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	ServerLogger = logger.With(zap.String("service", serviceName))
}

// Logger returns the CLI logger, falling back to a no-op logger before
// initialization so library code never needs a nil check.
func Logger() *zap.Logger {
	if CLILogger != nil {
		return CLILogger
	}
	return zap.NewNop()
}

// Sync flushes any buffered log entries. Best effort on shutdown.
func Sync() {
	if CLILogger != nil {
		_ = CLILogger.Sync()
	}
	if ServerLogger != nil {
		_ = ServerLogger.Sync()
	}
}

func parseLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug", "trace":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
