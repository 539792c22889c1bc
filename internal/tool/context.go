package tool

import "context"

// contextKey is an unexported type for context keys in this package.
type contextKey string

// currentUserKey is the context key for the user the current turn
// belongs to.
const currentUserKey = contextKey("current_user_id")

// attachmentsKey is the context key for files attached to the current
// turn by the connector.
const attachmentsKey = contextKey("attachments")

// WithCurrentUser returns a context with the current user ID set. Tools
// that touch the session lifecycle read it back with
// CurrentUserFromContext.
func WithCurrentUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, currentUserKey, userID)
}

// CurrentUserFromContext returns the user ID from the context, if any.
func CurrentUserFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(currentUserKey).(string); ok {
		return v
	}
	return ""
}

// WithAttachments returns a context carrying attachment references
// (URLs or file ids) received with the current message.
func WithAttachments(ctx context.Context, attachments []string) context.Context {
	return context.WithValue(ctx, attachmentsKey, attachments)
}

// AttachmentsFromContext returns the attachments from the context, if any.
func AttachmentsFromContext(ctx context.Context) []string {
	if v, ok := ctx.Value(attachmentsKey).([]string); ok {
		return v
	}
	return nil
}

// --- parameter helpers ---

func getString(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func getStringSlice(params map[string]any, key string) []string {
	raw, ok := params[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// getInt tolerates the float64 that JSON decoding produces for numbers.
func getInt(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return fallback
}
