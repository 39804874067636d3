package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pigeonhq/pigeon/internal/auth"
	"github.com/pigeonhq/pigeon/internal/model"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
)

// Authenticate returns an HTTP middleware that resolves the request's
// bearer token into a Principal via the resolver. On success the principal
// is attached to the request context; on failure a 403 JSON error response
// carrying the resolver's rejection message is returned.
func Authenticate(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, auth.MsgNotAuthenticated)
				return
			}

			principal, err := resolver.Resolve(r.Context(), raw)
			if err != nil {
				writeAuthError(w, auth.RejectionMessage(err))
				return
			}

			ctx := context.WithValue(r.Context(), AuthPrincipalKey, &principal)
			recordPrincipal(ctx, &principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns an HTTP middleware that only admits principals
// resolved from the platform admin token. It must be used after
// Authenticate in the middleware chain.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil || !principal.IsAdmin() {
				writeAuthError(w, auth.MsgNotAuthenticated)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *model.Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*model.Principal); ok {
		return p
	}
	return nil
}

// bearerToken pulls the credential from the Authorization header. Both
// "Bearer <token>" and a bare token are accepted.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
		rest = strings.TrimSpace(rest)
		return rest, rest != ""
	}
	return header, true
}

func writeAuthError(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusForbidden, message)
}

// writeJSONError emits the gateway's JSON error envelope without importing
// the handler package (which would create an import cycle).
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
		},
	})
}
