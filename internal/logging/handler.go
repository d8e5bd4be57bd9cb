package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	MessageIDKey  contextKey = "msg_id"
	UnitIDKey     contextKey = "unit_id"
	SubIDKey      contextKey = "sub_id"
	DestKey       contextKey = "dest"
	CallerKey     contextKey = "caller"
	MessageRefKey contextKey = "msg_ref"
	PartKey       contextKey = "part"
	PromptIDKey   contextKey = "prompt_id"
	// Add other keys as needed
)

// ContextHandler wraps another slog.Handler and adds attributes from context.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler creates a handler that extracts values from context.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// Handle adds context attributes before calling the wrapped handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if msgID, ok := ctx.Value(MessageIDKey).(int64); ok {
		r.AddAttrs(slog.Int64("msg_id", msgID))
	}
	if unitID, ok := ctx.Value(UnitIDKey).(int64); ok {
		r.AddAttrs(slog.Int64("unit_id", unitID))
	}
	if subID, ok := ctx.Value(SubIDKey).(int); ok {
		r.AddAttrs(slog.Int("sub_id", subID))
	}
	if dest, ok := ctx.Value(DestKey).(string); ok {
		r.AddAttrs(slog.String("dest", dest))
	}
	if caller, ok := ctx.Value(CallerKey).(string); ok {
		r.AddAttrs(slog.String("caller", caller))
	}
	if ref, ok := ctx.Value(MessageRefKey).(int); ok {
		r.AddAttrs(slog.Int("msg_ref", ref))
	}
	if part, ok := ctx.Value(PartKey).(int); ok {
		r.AddAttrs(slog.Int("part", part))
	}
	if promptID, ok := ctx.Value(PromptIDKey).(int64); ok {
		r.AddAttrs(slog.Int64("prompt_id", promptID))
	}

	return h.Handler.Handle(ctx, r)
}

// Helper functions to add values to context
func ContextWithMessageID(ctx context.Context, msgID int64) context.Context {
	return context.WithValue(ctx, MessageIDKey, msgID)
}

func ContextWithUnitID(ctx context.Context, unitID int64) context.Context {
	return context.WithValue(ctx, UnitIDKey, unitID)
}

func ContextWithSubID(ctx context.Context, subID int) context.Context {
	return context.WithValue(ctx, SubIDKey, subID)
}

func ContextWithDest(ctx context.Context, dest string) context.Context {
	return context.WithValue(ctx, DestKey, dest)
}

func ContextWithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

func ContextWithMessageRef(ctx context.Context, ref int) context.Context {
	return context.WithValue(ctx, MessageRefKey, ref)
}

func ContextWithPart(ctx context.Context, part int) context.Context {
	return context.WithValue(ctx, PartKey, part)
}

func ContextWithPromptID(ctx context.Context, promptID int64) context.Context {
	return context.WithValue(ctx, PromptIDKey, promptID)
}
