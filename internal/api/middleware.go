// internal/api/middleware.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/auth"
	apperrors "github.com/rkhurana000/skillstrong-pro-sub000/internal/common/errors"
)

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := map[string]interface{}{
			"requestId":  middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"bytes":      ww.BytesWritten(),
			"remoteAddr": r.RemoteAddr,
			"durationMs": time.Since(start).Milliseconds(),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Warn("request served", fields)
			return
		}
		s.logger.Debug("request served", fields)
	})
}

// optionalAuth attaches a principal when a valid bearer token is present.
// A missing token is anonymous and an invalid one is rejected.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || s.deps.Verifier == nil {
			next.ServeHTTP(w, r)
			return
		}
		p, err := s.deps.Verifier.Verify(header)
		if err != nil {
			s.errors.WriteError(w, r, apperrors.NewUnauthorizedError(err.Error()))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Verifier == nil {
			s.errors.WriteError(w, r, apperrors.NewUnauthorizedError("authentication is not configured"))
			return
		}
		p, err := s.deps.Verifier.Verify(r.Header.Get("Authorization"))
		if err != nil {
			details := "invalid bearer token"
			if errors.Is(err, auth.ErrMissingToken) {
				details = "bearer token required"
			}
			s.errors.WriteError(w, r, apperrors.NewUnauthorizedError(details))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// requireAdmin runs after requireAuth.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.FromContext(r.Context()).IsAdmin(s.opts.AdminRole) {
			s.errors.WriteError(w, r, apperrors.NewForbiddenError("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
