package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// daemonLogger wraps slog with the level-specific methods the daemon's
// call sites use directly.
type daemonLogger struct {
	logger *slog.Logger
}

func (d *daemonLogger) Info(msg string, args ...any)  { d.logger.Info(msg, args...) }
func (d *daemonLogger) Warn(msg string, args ...any)  { d.logger.Warn(msg, args...) }
func (d *daemonLogger) Error(msg string, args ...any) { d.logger.Error(msg, args...) }
func (d *daemonLogger) Debug(msg string, args ...any) { d.logger.Debug(msg, args...) }

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupDaemonLogger builds a structured logger rotated via lumberjack.
// Returns the lumberjack logger (so the caller can Close it on shutdown)
// and the daemonLogger wrapping it.
func setupDaemonLogger(logPath string, jsonFormat bool, level slog.Level) (*lumberjack.Logger, daemonLogger) {
	logF := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    50,
		MaxBackups: 7,
		MaxAge:     30,
		Compress:   true,
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(logF, opts)
	} else {
		handler = slog.NewTextHandler(logF, opts)
	}

	return logF, daemonLogger{logger: slog.New(handler)}
}

// stderrLogger builds a logger for foreground mode: stderr only, no file.
func stderrLogger(jsonFormat bool, level slog.Level) daemonLogger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return daemonLogger{logger: slog.New(handler)}
}

func silentLogger() daemonLogger {
	return daemonLogger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
