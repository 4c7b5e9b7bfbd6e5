package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/chetan-code/supatodo/internal/auth"
)

const bearerScheme = "bearer"

// bearerToken extracts the token from an Authorization header value.
// It returns "" when there is no token after the scheme.
func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware is the only trust boundary of the API. Every request
// must carry a bearer token that v accepts; the resolved user is put in
// the request context for the handlers. A failed check is final, there
// is no retry.
//
//	missing header            -> 401
//	no token after the scheme -> 401
//	token rejected / no user  -> 403
func AuthMiddleware(v auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				slog.Info("auth_header_missing", "path", r.URL.Path, "ip", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "access token required")
				return
			}

			token := bearerToken(header)
			if token == "" {
				slog.Info("auth_header_malformed", "path", r.URL.Path, "ip", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			user, err := v.Verify(r.Context(), token)
			if err != nil {
				slog.Warn("auth_token_rejected", "path", r.URL.Path, "ip", r.RemoteAddr, "error", err)
				writeError(w, http.StatusForbidden, "invalid token")
				return
			}
			if user == nil {
				slog.Warn("auth_user_not_found", "path", r.URL.Path, "ip", r.RemoteAddr)
				writeError(w, http.StatusForbidden, "user not found")
				return
			}

			slog.Debug("auth_success", "user_id", user.ID)
			ctx := auth.WithIdentity(r.Context(), auth.Identity{User: *user, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
