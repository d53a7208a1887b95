package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// requireBearer rejects requests without an accepted bearer token.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	if s.cfg.AuthDisabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorised(r.Header.Get("Authorization")) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, domain.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorised compares the token against every key in constant time.
func (s *Server) authorised(header string) bool {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}

	match := 0
	for _, key := range s.cfg.APIKeys {
		match |= subtle.ConstantTimeCompare([]byte(token), []byte(key))
	}
	return match == 1
}
