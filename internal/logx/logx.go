package logx

import (
	"context"

	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	contextIDKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithContextID annotates the logger with the browsing context id if present.
func WithContextID(ctx context.Context, id schema.ContextID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if id != "" {
		if current, ok := ctx.Value(contextIDKey).(schema.ContextID); ok && current == id {
			return log
		}
		log = log.With("context", id)
	}
	return log
}

// WithViewport annotates the logger with viewport dimensions.
func WithViewport(log pslog.Logger, viewport schema.Viewport) pslog.Logger {
	return log.With("width", viewport.Width, "height", viewport.Height)
}

// ContextWithContextID stores the context id marker for log de-duplication.
func ContextWithContextID(ctx context.Context, id schema.ContextID) context.Context {
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, contextIDKey, id)
}

// ContextWithContextIDLogger attaches the logger and context id marker to ctx.
func ContextWithContextIDLogger(ctx context.Context, log pslog.Logger, id schema.ContextID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithContextID(ctx, id)
}

// CopyContextFields copies the context id marker from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if id, ok := src.Value(contextIDKey).(schema.ContextID); ok && id != "" {
		dst = ContextWithContextID(dst, id)
	}
	return dst
}
