package auth

import "context"

type ctxKey int

const userIDKey ctxKey = iota

// WithUserID records the authenticated caller's identity for downstream
// handlers: the student ID for exam takers, the username for examiners.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the caller's identity, or "" when the request
// never passed through JWTMiddleware.
func UserIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(userIDKey).(string); ok {
		return s
	}
	return ""
}
