// Package authz provides request identity for the Studio API. Identity is
// opaque: an upstream provider authenticates the user and this package
// only extracts a stable user id, either from a trusted proxy header or
// from a JWT Bearer token.
package authz

import (
	"context"
	"net/http"
	"strings"
)

// identityCtxKey is an unexported type used as the context key for Identity.
type identityCtxKey struct{}

// Identity represents the authenticated user making a request. User is
// empty for unauthenticated requests.
type Identity struct {
	User string
}

// WithIdentity returns a new context with the given Identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext retrieves the Identity from the context.
// Returns the zero value and false if no identity is set.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// HeaderIdentityMiddleware returns HTTP middleware that extracts identity
// from the X-Remote-User header, as set by a trusted authenticating proxy.
// Requests without the header carry an empty identity; handlers that need
// an owner reject those with 401.
func HeaderIdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get("X-Remote-User"))
			ctx := WithIdentity(r.Context(), Identity{User: user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
