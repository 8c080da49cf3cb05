package middleware

import (
	"net/http"
	"strings"

	logpkg "github.com/benvon/stylesync/internal/logger"
	"github.com/benvon/stylesync/internal/request"
	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/benvon/stylesync/internal/session"
	"go.uber.org/zap"
)

// SessionHeader is an alternative to the Authorization header for clients
// that cannot set bearer tokens, such as image tags
const SessionHeader = "X-Session-Token"

// TokenVerifier validates session tokens
type TokenVerifier interface {
	Verify(token string) (*session.Claims, error)
}

// SessionAuth creates authentication middleware that validates session
// tokens and attaches the session id to the request context
func SessionAuth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := sessionToken(r)
			if !ok {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing session token", logger)
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				logger.Debug("session_token_rejected",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("error", logpkg.SanitizeError(err)),
				)
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired session token", logger)
				return
			}

			ctx := request.WithSessionID(r.Context(), claims.SessionID)
			ctx = ai.WithSessionID(ctx, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := r.Header.Get(SessionHeader); token != "" {
		return token, true
	}
	return "", false
}
