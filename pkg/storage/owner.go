package storage

import "context"

// ownerKey is a private type for the owner context key, preventing
// collisions with other packages.
type ownerKey struct{}

// SetOwner injects the ID of the user whose presentations may be accessed.
func SetOwner(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ownerKey{}, userID)
}

// GetOwner extracts the owner ID from the context. The boolean is false
// when no owner is set, in which case reads are not scoped.
func GetOwner(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(ownerKey{}).(int64)
	return v, ok
}
