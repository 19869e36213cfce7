// Package ctxlog carries a *slog.Logger in a context.Context.
//
// The default level comes from COURSE_WEB_LOG_LEVEL (DEBUG, INFO, WARN, ERROR);
// anything else means WARN.
package ctxlog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLogLevel names the environment variable holding the log level.
const EnvLogLevel = "COURSE_WEB_LOG_LEVEL"

type loggerKey struct{}

// LevelVar is shared by every logger built by this package.
var LevelVar = &slog.LevelVar{}

// DefaultLogger writes text records to stderr.
var DefaultLogger = NewText(os.Stderr)

func init() {
	LevelVar.Set(ParseLevel(os.Getenv(EnvLogLevel)))
}

// NewText returns a text logger writing to w at the package level.
func NewText(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: LevelVar}))
}

// NewJSON returns a JSON logger writing to w at the package level.
func NewJSON(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: LevelVar}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// New returns a copy of ctx carrying logger. A nil logger means DefaultLogger.
func New(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = DefaultLogger
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger carried by ctx, or DefaultLogger.
func Logger(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return DefaultLogger
	}
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return DefaultLogger
	}
	return logger
}

// Debug logs at debug level with the context logger.
func Debug(ctx context.Context, msg string, args ...any) {
	Logger(ctx).DebugContext(ctx, msg, args...)
}

// Info logs at info level with the context logger.
func Info(ctx context.Context, msg string, args ...any) {
	Logger(ctx).InfoContext(ctx, msg, args...)
}

// Warn logs at warn level with the context logger.
func Warn(ctx context.Context, msg string, args ...any) {
	Logger(ctx).WarnContext(ctx, msg, args...)
}

// Error logs at error level with the context logger.
func Error(ctx context.Context, msg string, args ...any) {
	Logger(ctx).ErrorContext(ctx, msg, args...)
}

// ParseLevel maps a level name to a slog.Level, defaulting to WARN.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
