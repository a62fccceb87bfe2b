package context

import (
	"context"
	"net/http"
)

// Principal is the identity extracted from a verified bearer token. User
// records live in the surrounding application; the engine only needs the
// subject id and the admin flag.
type Principal struct {
	UserID  string
	IsAdmin bool
}

type contextKey string

const (
	authenticatedPrincipalContextKey = contextKey("authenticatedPrincipal")
)

func ContextSetAuthenticatedPrincipal(r *http.Request, principal *Principal) *http.Request {
	ctx := context.WithValue(r.Context(), authenticatedPrincipalContextKey, principal)

	return r.WithContext(ctx)
}

func ContextGetAuthenticatedPrincipal(r *http.Request) *Principal {
	principal, ok := r.Context().Value(authenticatedPrincipalContextKey).(*Principal)
	if !ok {
		return nil
	}

	return principal
}
