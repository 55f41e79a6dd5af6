package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	slogmulti "github.com/samber/slog-multi"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(slog.NewJSONHandler(stdoutWriter{}, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// stdoutWriter resolves os.Stdout on every write so tests can swap it.
type stdoutWriter struct{}

func (stdoutWriter) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

// Setup installs the process logger: JSON lines to stdout and, when logFile is
// set, the same JSON lines appended to that file. The returned func closes the file.
func Setup(level, logFile string) (func() error, error) {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	stdoutHandler := slog.NewJSONHandler(stdoutWriter{}, opts)

	if strings.TrimSpace(logFile) == "" {
		install(slog.New(stdoutHandler))
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		install(slog.New(stdoutHandler))
		Error("logger.file_open_failed", map[string]any{"file": logFile, "error": err.Error()})
		return func() error { return nil }, err
	}

	install(slog.New(slogmulti.Fanout(stdoutHandler, slog.NewJSONHandler(f, opts))))
	return f.Close, nil
}

// SetupWithWriters installs a fanout logger over arbitrary writers.
func SetupWithWriters(level string, writers ...io.Writer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	handlers := make([]slog.Handler, 0, len(writers))
	for _, w := range writers {
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
	}
	install(slog.New(slogmulti.Fanout(handlers...)))
}

func install(l *slog.Logger) {
	current.Store(l)
	slog.SetDefault(l)
}

// Logger returns the installed slog logger.
func Logger() *slog.Logger {
	return current.Load()
}

// ParseLevel maps a textual level to slog.Level, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	write(slog.LevelDebug, msg, fields)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(slog.LevelInfo, msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(slog.LevelWarn, msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(slog.LevelError, msg, fields)
}

func write(level slog.Level, msg string, fields map[string]any) {
	l := current.Load()
	ctx := context.Background()
	if !l.Enabled(ctx, level) {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	l.LogAttrs(ctx, level, msg, attrs...)
}

type requestIDKey struct{}

// WithRequestID returns ctx carrying the inbound request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id stored by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
