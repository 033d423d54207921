package auth

import "context"

type identityContextKey struct{}

// Identity is the authenticated principal bound to a request.
type Identity struct {
	User   User
	Claims *Claims
}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// UserFromContext returns the bound user, if any.
func UserFromContext(ctx context.Context) (User, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return User{}, false
	}
	return id.User, true
}
