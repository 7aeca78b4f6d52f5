package contextutil

import (
	"context"

	"nim-chat/internal/session"
)

const sessionKey contextKey = "session"

// WithSession returns a copy of ctx carrying the request's chat session.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the chat session stored by the session middleware.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*session.Session)
	return sess, ok && sess != nil
}
