package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/sitekeeper/internal/server/handlers"
	"github.com/iudanet/sitekeeper/internal/server/jwt"
	"github.com/iudanet/sitekeeper/pkg/api"
)

// TokenValidator проверяет access token и возвращает его claims
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// AuthMiddleware создает middleware для проверки JWT токена
func AuthMiddleware(logger *slog.Logger, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, api.ErrCodeUnauthorized, "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				logger.Warn("Invalid Authorization header format", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, api.ErrCodeUnauthorized, "invalid token format")
				return
			}

			claims, err := tokens.Validate(strings.TrimSpace(tokenString))
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				writeError(w, http.StatusUnauthorized, api.ErrCodeUnauthorized, "invalid token")
				return
			}

			logger.Debug("Operator authenticated", "operator_id", claims.OperatorID, "username", claims.Username)

			ctx := handlers.WithOperator(r.Context(), claims.OperatorID, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
