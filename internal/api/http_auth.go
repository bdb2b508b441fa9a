package api

import (
	"context"
	"net/http"
	"strings"

	"playchrono/internal/domain"
	"playchrono/internal/models"
)

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// authenticated resolves the bearer token to a live session before calling next.
func (s *HTTPServer) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		session, err := s.svc.Auth.Authenticate(r.Context(), token)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeySession, session)))
	}
}

func requireRole(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFrom(r.Context())
		if session == nil || !session.HasRole(roles...) {
			writeError(w, http.StatusForbidden, domain.ErrForbidden.Error())
			return
		}
		next(w, r)
	}
}

func sessionFrom(ctx context.Context) *models.Session {
	session, _ := ctx.Value(ctxKeySession).(*models.Session)
	return session
}
