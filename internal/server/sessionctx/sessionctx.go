// Package sessionctx carries the browser session id through request contexts.
package sessionctx

import "context"

type ctxKey string

const sessionIDKey ctxKey = "pto.sessionID"

// WithSessionID stores the session id in context.
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sid)
}

// SessionIDFromCtx fetches the session id from context.
func SessionIDFromCtx(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey).(string)
	if !ok || sid == "" {
		return "", false
	}
	return sid, true
}
