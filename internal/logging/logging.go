// Package logging builds the application's slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"gallerystats/internal/config"
)

// New returns a logger writing to stdout and, outside of tests, to a rotating
// file under the configured logs directory. Production logs are JSON.
func New(cfg *config.Config) *slog.Logger {
	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if !cfg.IsTest() && cfg.LogsDirectory != "" {
		if err := os.MkdirAll(cfg.LogsDirectory, 0o755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   filepath.Join(cfg.LogsDirectory, cfg.AppName+".log"),
				MaxSize:    cfg.LogsMaxSizeInMb,
				MaxBackups: cfg.LogsMaxBackups,
				MaxAge:     cfg.LogsMaxAgeInDays,
				Compress:   true,
			})
		}
	}

	return NewWithWriter(cfg, io.MultiWriter(writers...))
}

// NewWithWriter builds a logger on an arbitrary writer.
func NewWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(string(cfg.LogLevel))}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(slog.String("app", cfg.AppName))
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case string(config.LogLevelDebug):
		return slog.LevelDebug
	case string(config.LogLevelWarn):
		return slog.LevelWarn
	case string(config.LogLevelError):
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
