package logger

import (
	"context"
	"log/slog"
)

// deferredHandler forwards to whatever handler slog.Default holds at the time
// a record is written.
type deferredHandler struct {
	attrs  []slog.Attr
	groups []string
}

func (h *deferredHandler) resolve() slog.Handler {
	base := slog.Default().Handler()
	if len(h.attrs) > 0 {
		base = base.WithAttrs(h.attrs)
	}
	for _, g := range h.groups {
		base = base.WithGroup(g)
	}
	return base
}

func (h *deferredHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slog.Default().Handler().Enabled(ctx, level)
}

func (h *deferredHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h *deferredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(h.groups) > 0 {
		return &boundHandler{parent: h, attrs: attrs}
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &deferredHandler{attrs: merged}
}

func (h *deferredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &deferredHandler{attrs: h.attrs, groups: groups}
}

// boundHandler keeps attrs added after a group inside that group.
type boundHandler struct {
	parent *deferredHandler
	attrs  []slog.Attr
}

func (h *boundHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.parent.Enabled(ctx, level)
}

func (h *boundHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.parent.resolve().WithAttrs(h.attrs).Handle(ctx, r)
}

func (h *boundHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &boundHandler{parent: h.parent, attrs: merged}
}

func (h *boundHandler) WithGroup(name string) slog.Handler {
	return h.parent.resolve().WithAttrs(h.attrs).WithGroup(name)
}
