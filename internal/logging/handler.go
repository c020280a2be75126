package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// tee sends each record to every handler enabled for its level.
type tee []slog.Handler

// Tee combines handlers into one, dropping nil entries.
func Tee(handlers ...slog.Handler) slog.Handler {
	t := make(tee, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			t = append(t, h)
		}
	}
	return t
}

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(t, func(h slog.Handler) bool {
		return h.Enabled(ctx, level)
	})
}

// Handle delivers r to all handlers. A failing output does not stop the
// others; failures are joined.
func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t tee) WithGroup(name string) slog.Handler {
	if name == "" {
		return t
	}
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t tee) each(f func(slog.Handler) slog.Handler) tee {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = f(h)
	}
	return out
}

// Attrs returns the attributes current at logging time, such as the id of
// the running session.
type Attrs func() []slog.Attr

// stampHandler adds the result of an Attrs func to every record. A key the
// record already carries is not stamped again.
type stampHandler struct {
	inner slog.Handler
	attrs Attrs
}

// NewStampHandler wraps inner so each record gets the attributes of fn.
func NewStampHandler(inner slog.Handler, fn Attrs) slog.Handler {
	if fn == nil {
		return inner
	}
	return &stampHandler{inner: inner, attrs: fn}
}

func (h *stampHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *stampHandler) Handle(ctx context.Context, r slog.Record) error {
	extra := h.attrs()
	if len(extra) == 0 {
		return h.inner.Handle(ctx, r)
	}

	present := make(map[string]bool, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		present[a.Key] = true
		return true
	})
	for _, a := range extra {
		if !present[a.Key] {
			r.AddAttrs(a)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *stampHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stampHandler{inner: h.inner.WithAttrs(attrs), attrs: h.attrs}
}

func (h *stampHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &stampHandler{inner: h.inner.WithGroup(name), attrs: h.attrs}
}
