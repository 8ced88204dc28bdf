package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu  sync.RWMutex
	log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// Init installs the process-wide logger. Production environments log JSON,
// everything else logs text. LOG_LEVEL overrides the default level.
func Init(env string) {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(os.Getenv("LOG_LEVEL"))}

	var h slog.Handler
	switch strings.ToLower(env) {
	case "production", "prod":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	Set(slog.New(h))
}

// Set replaces the process-wide logger.
func Set(l *slog.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
	slog.SetDefault(l)
}

func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// ParseLogLevel converts a string level name to slog.Level.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(msg string, args ...any) { L().Debug(msg, normalize(args)...) }
func Info(msg string, args ...any)  { L().Info(msg, normalize(args)...) }
func Warn(msg string, args ...any)  { L().Warn(msg, normalize(args)...) }
func Error(msg string, args ...any) { L().Error(msg, normalize(args)...) }

// Fatal logs at error level and exits.
func Fatal(msg string, args ...any) {
	L().Error(msg, normalize(args)...)
	os.Exit(1)
}

// With returns a child logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(normalize(args)...)
}

// WithContext returns a logger tagged with the request trace id, if any.
func WithContext(ctx context.Context, traceID func(context.Context) string) *slog.Logger {
	if traceID != nil {
		if id := traceID(ctx); id != "" {
			return L().With("trace_id", id)
		}
	}
	return L()
}

// normalize lets callers pass a bare error as the only argument.
func normalize(args []any) []any {
	if len(args) == 1 {
		if err, ok := args[0].(error); ok {
			return []any{"error", err}
		}
	}
	return args
}
