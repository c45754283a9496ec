package logger

import (
	"context"
	"log/slog"
)

type attrsCtxKey struct{}

// WithAttrs returns a context carrying attrs in addition to those already attached.
// Loggers built on ContextHandler add them to every record logged with the context.
// The attributes are scoped to the returned context: callers that keep using the parent
// context never see them.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	existing := AttrsFromContext(ctx)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	for _, a := range attrs {
		if a.Equal(slog.Attr{}) {
			continue
		}
		merged = append(merged, a)
	}
	return context.WithValue(ctx, attrsCtxKey{}, merged)
}

// AttrsFromContext returns the attributes attached with WithAttrs.
func AttrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(attrsCtxKey{}).([]slog.Attr)
	return attrs
}

// ContextHandler decorates a slog.Handler with attributes carried on the context.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next so that records logged with a context carry
// the attributes attached via WithAttrs.
func NewContextHandler(next slog.Handler) *ContextHandler {
	if h, ok := next.(*ContextHandler); ok {
		return h
	}
	return &ContextHandler{next: next}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := AttrsFromContext(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.next.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}
