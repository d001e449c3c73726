// Package middlewares carries the HTTP middleware of the checkout service.
package middlewares

import (
	"context"
	"net/http"
)

// contextKey is an unexported type for context keys in this package.
// Using a custom type prevents collisions with keys from other packages
// that might use the same underlying string value.
type contextKey string

const (
	// HeaderXUserID carries the authenticated identity established by the
	// auth collaborator upstream. This service trusts it as-is.
	HeaderXUserID = "X-User-ID"

	contextKeyUserID contextKey = "user-id"
)

// AttachIdentity copies the authenticated user id from the request header
// into the context. Requests without an identity are rejected before any
// handler runs.
func AttachIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderXUserID)
		if userID == "" {
			http.Error(w, `{"error":"identity_required"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID extracts the authenticated user id attached by AttachIdentity.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyUserID).(string)
	return id
}
