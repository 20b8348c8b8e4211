// Package session carries the caller identity supplied by the upstream
// auth collaborator. This service trusts it completely; validating the
// credentials behind it is the collaborator's job.
package session

import "context"

// Roles recognized by the handlers.
const (
	RoleAdmin    = "admin"
	RoleDriver   = "driver"
	RoleGuardian = "guardian"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID int64
	Role   string
}

type contextKey struct{}

// WithIdentity stores the identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored on the context, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
