package log

import (
	"io"
	"log/slog"
)

// Option configures NewSecureLogger.
type Option func(*loggerConfig)

type loggerConfig struct {
	json    bool
	secrets []string
}

// WithJSON switches the output from logfmt-style text to JSON lines.
func WithJSON(enabled bool) Option {
	return func(c *loggerConfig) {
		c.json = enabled
	}
}

// WithSecrets registers literal values, typically the configured account and
// password, that are masked anywhere in the output. Empty values are ignored.
func WithSecrets(secrets ...string) Option {
	return func(c *loggerConfig) {
		for _, s := range secrets {
			if s != "" {
				c.secrets = append(c.secrets, s)
			}
		}
	}
}

// NewSecureLogger returns a logger writing to w through a SecureHandler.
// The level is Warn, or Debug when verbose is set.
func NewSecureLogger(w io.Writer, verbose bool, opts ...Option) *slog.Logger {
	var cfg loggerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.json {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(NewSecureHandler(h, cfg.secrets...))
}
