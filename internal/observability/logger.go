package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	attrService = "service"
	attrRunID   = "run_id"

	serviceName = "repoaudit"
)

type runIDKey struct{}

// WithRunID returns a context whose log records carry id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run ID stored in ctx, if any.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// RunHandler is an [slog.Handler] that adds the service name to every record
// and the run ID from the record's context.
type RunHandler struct {
	inner slog.Handler
}

// NewRunHandler wraps inner.
func NewRunHandler(inner slog.Handler) *RunHandler {
	return &RunHandler{inner: inner.WithAttrs([]slog.Attr{slog.String(attrService, serviceName)})}
}

// Enabled delegates to the inner handler.
func (h *RunHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds the run ID, then delegates.
func (h *RunHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx != nil {
		if id := RunID(ctx); id != "" {
			record.AddAttrs(slog.String(attrRunID, id))
		}
	}
	if err := h.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("run handler: %w", err)
	}
	return nil
}

// WithAttrs returns a new RunHandler with additional attributes.
func (h *RunHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RunHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new RunHandler with a group prefix.
func (h *RunHandler) WithGroup(name string) slog.Handler {
	return &RunHandler{inner: h.inner.WithGroup(name)}
}

// LogOptions selects the logger's level, encoding and destination.
type LogOptions struct {
	Level  string
	Format string
	Writer io.Writer
}

// NewLogger builds a logger from opts. Unknown levels fall back to info and
// unknown formats to text. The default writer is stderr.
func NewLogger(opts LogOptions) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var inner slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		inner = slog.NewJSONHandler(w, hopts)
	} else {
		inner = slog.NewTextHandler(w, hopts)
	}
	return slog.New(NewRunHandler(inner))
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
