package tools

import "context"

type contextKey string

const chatIDKey contextKey = "chat_id"

// WithChatID records the chat a turn belongs to, for tools that reply
// out of band (reminders).
func WithChatID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, chatIDKey, id)
}

// ChatIDFromContext extracts the chat ID set by WithChatID.
func ChatIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(chatIDKey).(int64)
	return id, ok
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
