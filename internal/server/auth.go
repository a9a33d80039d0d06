package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// withAuth requires the configured bearer token on every route except the
// health check. With no token configured all requests pass.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			s.writeError(w, r, statusError(http.StatusUnauthorized, 0, errors.New("missing bearer token")))
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.apiToken)) != 1 {
			s.writeError(w, r, statusError(http.StatusForbidden, 0, errors.New("invalid bearer token")))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
