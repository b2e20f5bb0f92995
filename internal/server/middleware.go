package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Tyrowin/roomchat/internal/auth"
)

type contextKey string

const adminSubjectKey contextKey = "admin-subject"

// requireAdmin rejects requests without a valid admin bearer token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.secret.Enabled() {
			s.writeServiceError(w, r, auth.ErrAdminDisabled)
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			s.writeServiceError(w, r, auth.ErrInvalidToken)
			return
		}

		claims, err := s.tokens.Validate(strings.TrimSpace(raw))
		if err != nil {
			s.log.Warn("Admin token rejected", "remote", r.RemoteAddr, "error", err)
			s.writeServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), adminSubjectKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func adminSubject(ctx context.Context) string {
	subject, _ := ctx.Value(adminSubjectKey).(string)
	if subject == "" {
		return "admin"
	}
	return subject
}

// requestLogger logs one line per API request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
