package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pigeonhq/pigeon/internal/model"
)

// principalRecorderKey carries a *principalRecorder that the request logger
// plants before the auth gate runs. Authenticate fills it in once the bearer
// token resolves, so the access line can name the calling service even
// though the logger sits outside the auth middleware.
const principalRecorderKey contextKey = "principal_recorder"

type principalRecorder struct {
	p *model.Principal
}

// Logger returns an HTTP middleware that writes one structured access line
// per request: method, path, status, response size, duration, request ID,
// and remote address. When the request authenticated as a service, the line
// also carries service_id and api_key_id so rejections and throttles can be
// attributed without correlating a second log stream.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			rec := &principalRecorder{}
			r = r.WithContext(context.WithValue(r.Context(), principalRecorderKey, rec))

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if ww.status >= 500 {
				level = slog.LevelError
			} else if ww.status >= 400 {
				level = slog.LevelWarn
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.status,
				"duration_ms", float64(duration.Microseconds())/1000.0,
				"bytes", ww.bytes,
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			if p := rec.p; p != nil {
				if p.IsAdmin() {
					attrs = append(attrs, "principal", "admin")
				} else {
					attrs = append(attrs, "service_id", p.ServiceID, "api_key_id", p.APIKeyID)
				}
			}
			logger.Log(r.Context(), level, "request", attrs...)
		})
	}
}

// recordPrincipal notes the resolved caller for the access line, if the
// request logger is in the chain.
func recordPrincipal(ctx context.Context, p *model.Principal) {
	if rec, ok := ctx.Value(principalRecorderKey).(*principalRecorder); ok {
		rec.p = p
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// bytes written for the access line.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter, required for http.Flusher
// and other interface assertions through middleware chains.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
