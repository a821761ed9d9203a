package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"lyrahub/internal/auth"
	"lyrahub/internal/metrics"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const userIDKey ctxKey = iota

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// requireAuth turns the authorizer outcome into a 401 or a user id on the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		outcome := s.authorizer.Check(r)

		switch outcome.Status {
		case auth.StatusAuthenticated:
			next.ServeHTTP(w, r.WithContext(withUserID(ctx, outcome.UserID)))
		case auth.StatusInvalid:
			s.log.DebugContext(ctx, "Rejected invalid credentials",
				"error", outcome.Err)

			respondError(ctx, w, s.log, http.StatusUnauthorized, "invalid token")
		default:
			respondError(ctx, w, s.log, http.StatusUnauthorized, "authentication required")
		}
	})
}

// optionalAuth attaches the user id when valid credentials are present and
// otherwise serves the request anonymously.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome := s.authorizer.Check(r)
		if outcome.Status == auth.StatusAuthenticated {
			r = r.WithContext(withUserID(r.Context(), outcome.UserID))
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.InfoContext(r.Context(), "Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestID", chimiddleware.GetReqID(r.Context()))
	})
}

// recordMetrics labels requests with the matched route pattern so path
// parameters do not blow up label cardinality.
func (s *Server) recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

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

		metrics.RecordAPIRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
	})
}
