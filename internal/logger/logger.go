package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey struct{}

type Options struct {
	Component string
	Level     string
	// FilePath enables a rotating JSON log file next to stdout. Empty means stdout only.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	once sync.Once
	base *slog.Logger
)

// Init configures the process logger exactly once and returns it.
func Init(opts Options) *slog.Logger {
	once.Do(func() {
		base = New(os.Stdout, opts)
	})
	return base
}

// New builds a logger writing JSON to w, and to a rotating file when opts.FilePath is set.
func New(w io.Writer, opts Options) *slog.Logger {
	if opts.FilePath != "" {
		_ = os.MkdirAll(filepath.Dir(opts.FilePath), 0o755)
		rot := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 7),
		}
		w = io.MultiWriter(w, rot)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	l := slog.New(traceHandler{h})
	if opts.Component != "" {
		l = l.With("component", opts.Component)
	}
	return l
}

// Base returns the process logger, falling back to slog's default before Init.
func Base() *slog.Logger {
	if base == nil {
		return slog.Default()
	}
	return base
}

// Component returns a child of l tagged with a component name. A nil l means Base().
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Base()
	}
	return l.With("component", name)
}

func WithCtx(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromCtx returns the logger stored in ctx or Base().
func FromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return Base()
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// traceHandler adds trace_id and span_id when the record's context carries a span.
type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{h.Handler.WithGroup(name)}
}
