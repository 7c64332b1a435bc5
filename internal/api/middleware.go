package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"socialize/internal/account"
	"socialize/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const identityContextKey = contextKey("identity")

// SessionMiddleware resolves the session cookie to an identity and attaches
// it to the request context. It never rejects a request: a missing or invalid
// session proceeds anonymously, and an invalid cookie is cleared.
func (s *Server) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := s.accounts.Resolve(r.Context(), token)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "session resolution failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if identity == nil {
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if identity.Renewed {
			s.setSessionCookie(w, token)
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests that SessionMiddleware left anonymous.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentityFromContext(r.Context()) == nil {
			s.writeError(w, r, newAppError(http.StatusUnauthorized, "Authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetIdentityFromContext(ctx context.Context) *account.Identity {
	if identity, ok := ctx.Value(identityContextKey).(*account.Identity); ok {
		return identity
	}
	return nil
}

// MetricsMiddleware records request counts and latency by route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
