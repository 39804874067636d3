package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/pigeonhq/pigeon/internal/auth"
	"github.com/pigeonhq/pigeon/internal/counter"
	"github.com/pigeonhq/pigeon/internal/errs"
	"github.com/pigeonhq/pigeon/internal/ratelimit"
)

// IPLimit returns an HTTP middleware that limits requests per client IP
// to the specified number per minute. This is the outer abuse guard in
// front of the authenticated per-service admission gates.
func IPLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// Admission returns an HTTP middleware that runs the given rate-limiting
// strategy against the authenticated principal. Admin principals bypass
// the gate entirely. When the counter store itself fails the request is
// admitted (fail open): availability of dispatch wins over strict
// enforcement, and the fault is logged for the operators instead.
// It must be used after Authenticate in the middleware chain.
func Admission(strategy ratelimit.Strategy, store counter.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil {
				writeAuthError(w, auth.MsgNotAuthenticated)
				return
			}
			if principal.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := strategy.Allow(r.Context(), store, principal.ServiceID.String(), principal.APIKeyID.String())
			if err != nil {
				if errs.IsStoreFault(err) {
					logger.ErrorContext(r.Context(), "rate limit store failure, admitting request",
						"strategy", strategy.Name(),
						"service_id", principal.ServiceID,
						"api_key_id", principal.APIKeyID,
						"error", err,
					)
					next.ServeHTTP(w, r)
					return
				}
				logger.ErrorContext(r.Context(), "rate limit check failed, admitting request",
					"strategy", strategy.Name(),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				logger.DebugContext(r.Context(), "rate limited",
					"strategy", strategy.Name(),
					"service_id", principal.ServiceID,
					"api_key_id", principal.APIKeyID,
				)
				writeJSONError(w, http.StatusTooManyRequests, strategy.ErrorMessage())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
