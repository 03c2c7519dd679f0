package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Fields flow through context enrichment so business context
// (response_id, instance_id, etc.) shows up in every log statement without
// threading it through call sites.
type LogFields struct {
	ResponseID *int64  // Conversation response being processed
	InstanceID *int64  // Conversation instance (the published plan)
	AccountID  *int64  // Owning account
	MessageID  *string // Redis stream message ID
	Trigger    *string // What kicked off finalization (turn, manual, inactivity)
	Component  string  // Component name (e.g., "echoform.worker.finalizer")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking
// precedence. Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.ResponseID != nil {
		result.ResponseID = next.ResponseID
	}
	if next.InstanceID != nil {
		result.InstanceID = next.InstanceID
	}
	if next.AccountID != nil {
		result.AccountID = next.AccountID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.Trigger != nil {
		result.Trigger = next.Trigger
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{ResponseID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if
// truncated. Useful for logging potentially long transcripts or payloads.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
