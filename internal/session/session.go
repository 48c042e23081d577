package session

import (
	"context"

	"github.com/google/uuid"
)

type sessionKey struct{}

// User is the identity asserted by the verified bearer token of the active request.
type User struct {
	ID   uuid.UUID
	Role string
}

// WithUser binds the session user to ctx.
func WithUser(ctx context.Context, user User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionKey{}, user)
}

// FromContext returns the session user bound to ctx, if any.
func FromContext(ctx context.Context) (User, bool) {
	if ctx == nil {
		return User{}, false
	}
	user, ok := ctx.Value(sessionKey{}).(User)
	if !ok || user.ID == uuid.Nil {
		return User{}, false
	}
	return user, true
}

type correlationKey struct{}

// WithCorrelationID binds the request correlation id to ctx. Blank ids are ignored.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id bound to ctx, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
