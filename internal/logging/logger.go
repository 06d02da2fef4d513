// Package logging builds the slog logger used by labrun.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/roach88/labengine/internal/config"
)

// Logger wraps slog.Logger and owns its output.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New creates a logger from cfg.
//
// It configures:
//   - Output destination (stdout, stderr or a rotating file)
//   - Output format (JSON or text)
//   - Level filtering
//   - Default fields (service name, version)
func New(cfg config.LoggingConfig, version string) (*Logger, error) {
	output, closer, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	return &Logger{
		Logger: slog.New(newHandler(output, cfg, version)),
		closer: closer,
	}, nil
}

// NewWithWriter creates a logger writing to w. Used by tests and by
// callers that already own an output.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	return &Logger{Logger: slog.New(newHandler(w, cfg, version))}
}

func newHandler(w io.Writer, cfg config.LoggingConfig, version string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return handler.WithAttrs([]slog.Attr{
		slog.String("service", "labengine"),
		slog.String("version", version),
	})
}

func openOutput(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		return os.Stderr, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	case "file":
		if cfg.File.Path == "" {
			return nil, nil, fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		}
		return rotating, rotating, nil
	}
	return nil, nil, fmt.Errorf("unsupported log output: %s", cfg.Output)
}

// parseLevel converts a string log level to slog.Level.
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
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

// With returns a new Logger with additional default attributes. The
// returned logger shares the output of l.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Close releases a file output. Safe to call on any logger.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default is a text logger on stderr at info level, for use before
// configuration is loaded.
func Default() *Logger {
	return NewWithWriter(os.Stderr, config.LoggingConfig{Level: "info", Format: "text"}, "dev")
}
