package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls one attribute out of a request context, such as the
// request id.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// contextHandler adds extractor output and WithAttrs values to each record it
// passes on.
type contextHandler struct {
	slog.Handler
	extractors []ContextExtractor
}

func newContextHandler(next slog.Handler, extractors []ContextExtractor) slog.Handler {
	var kept []ContextExtractor
	for _, fn := range extractors {
		if fn != nil {
			kept = append(kept, fn)
		}
	}
	return contextHandler{Handler: next, extractors: kept}
}

func (h contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, fn := range h.extractors {
		if a, ok := fn(ctx); ok {
			rec.AddAttrs(a)
		}
	}
	rec.AddAttrs(attrsFromContext(ctx)...)
	return h.Handler.Handle(ctx, rec)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs), extractors: h.extractors}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name), extractors: h.extractors}
}
