package api

import "context"

// contextKey is an unexported type for context keys to prevent collisions
type contextKey string

const contextKeyRequestID contextKey = "request_id"

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}
