package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	channelIDKey contextKey = "channel_id"
	jobIDKey     contextKey = "job_id"
	stageKey     contextKey = "stage"
)

// WithChannelID annotates context with the channel identifier.
func WithChannelID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, channelIDKey, id)
}

// WithJobID annotates context with the production job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var fields []Attr
	if id, ok := ctx.Value(channelIDKey).(int64); ok {
		fields = append(fields, slog.Int64(FieldChannelID, id))
	}
	if id, ok := ctx.Value(jobIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if stage, ok := ctx.Value(stageKey).(string); ok && stage != "" {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger pre-populated with context fields.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
