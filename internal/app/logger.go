package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger on stdout. LOG_FORMAT=json selects the
// JSON handler; anything else is human-readable text.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: !cfg.IsProduction(),
		Level:     cfg.SlogLevel(),
	}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	if cfg != nil {
		logger = logger.With(slog.String("env", cfg.AppEnv))
	}
	return logger
}
