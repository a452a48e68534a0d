package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// CookieName is the cookie carrying the token after a login.
const CookieName = "token"

// contextKey is unexported so only this package can set or read the subject.
type contextKey string

const subjectKey contextKey = "subject"

// RequireAuth rejects requests without a valid token with 401 and stores the
// token subject in the request context otherwise.
//
// A nil tokens disables authentication: every request passes through. That
// is the mode when no JWT_SECRET is configured.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokens == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := extractSubject(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="movieshelf"`)
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated token subject, or ("", false)
// for anonymous requests.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}

var errNoToken = errors.New("auth: no token")

// extractSubject reads the token from the Authorization header, falling back
// to the cookie.
func extractSubject(r *http.Request, tokens *TokenService) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", errNoToken
		}
		return tokens.Validate(strings.TrimSpace(token))
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", errNoToken
	}
	return tokens.Validate(cookie.Value)
}
