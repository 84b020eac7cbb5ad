package auth

import (
	"context"

	"github.com/rhuss/slidewright/pkg/storage"
)

type identityKey struct{}

type userKey struct{}

// SetIdentity stores the authenticated identity in the context.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext retrieves the authenticated identity.
// Returns nil if no identity is set.
func IdentityFromContext(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return v
	}
	return nil
}

// SetUser stores the current user in the context and scopes presentation
// access to that user.
func SetUser(ctx context.Context, u *storage.User) context.Context {
	ctx = context.WithValue(ctx, userKey{}, u)
	return storage.SetOwner(ctx, u.ID)
}

// UserFromContext returns the current user, or nil on unauthenticated routes.
func UserFromContext(ctx context.Context) *storage.User {
	if v, ok := ctx.Value(userKey{}).(*storage.User); ok {
		return v
	}
	return nil
}
