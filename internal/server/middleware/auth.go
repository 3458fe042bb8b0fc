package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/auth"
)

// TokenCookie is the cookie the login endpoint sets for browser clients.
const TokenCookie = "token"

// Auth rejects requests without a valid access token. The token is read from
// the Authorization header first, then from the token cookie.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := requestToken(r)
			if tok == "" {
				unauthorized(w, "missing credentials")
				return
			}

			userID, err := auth.UserIDFromToken(jwtSecret, tok)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("auth: rejected token")
				unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// UserIDFromRequest returns a lookup that reports the user a request's
// token belongs to, without rejecting anything. The push channel uses it to
// cross-check its handshake identity.
func UserIDFromRequest(jwtSecret string) func(*http.Request) (uuid.UUID, bool) {
	return func(r *http.Request) (uuid.UUID, bool) {
		tok := requestToken(r)
		if tok == "" {
			return uuid.Nil, false
		}
		userID, err := auth.UserIDFromToken(jwtSecret, tok)
		if err != nil {
			return uuid.Nil, false
		}
		return userID, true
	}
}

func requestToken(r *http.Request) string {
	if tok := extractBearer(r); tok != "" {
		return tok
	}
	return extractCookie(r)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func extractCookie(r *http.Request) string {
	c, err := r.Cookie(TokenCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401,"detail":"` + detail + `"}`))
}
