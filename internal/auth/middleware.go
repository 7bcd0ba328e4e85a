package auth

import (
	"context"
	"net/http"

	"github.com/BradenHooton/lantern/internal/models"
	pkghttp "github.com/BradenHooton/lantern/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// IdentityContextKey is the key for storing the resolved identity in context
	IdentityContextKey contextKey = "identity"
)

// WithIdentity returns a copy of ctx carrying the identity
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

// GetIdentityFromContext extracts the resolved identity; never nil
func GetIdentityFromContext(r *http.Request) *models.Identity {
	identity, ok := r.Context().Value(IdentityContextKey).(*models.Identity)
	if !ok || identity == nil {
		return &models.Identity{Method: models.AuthMethodNone}
	}
	return identity
}

// GetUserFromContext returns the authenticated user or nil
func GetUserFromContext(r *http.Request) *models.User {
	return GetIdentityFromContext(r).User
}

// RequireAuth rejects anonymous requests (must be used after Resolver.Middleware)
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetIdentityFromContext(r).Authenticated() {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireGroup creates a middleware that enforces group-based access control.
// The user was loaded from storage for this request, so its group is current.
func RequireGroup(group string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r)
			if user == nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			if user.Group != group {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
