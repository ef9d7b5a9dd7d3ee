package api

import (
	"context"
	"log"
	"net/http"
	"strings"

	"SupportChat/internal/auth"
)

// UserContextKey — ключ для сохранения claims пользователя в контексте запроса.
var UserContextKey = &contextKey{"User"}

type contextKey struct {
	name string
}

// AuthMiddleware проверяет bearer-токен из заголовка Authorization и
// кладет личность в контекст запроса. Запрос без валидного токена
// отклоняется до любого изменения состояния.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "Unauthorized: Missing Authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")

			claims, err := auth.VerifyToken(token, secret)
			if err != nil {
				log.Printf("AuthMiddleware: невалидный токен: %v", err)
				http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// claimsFromContext достает личность, положенную AuthMiddleware.
func claimsFromContext(r *http.Request) (auth.Claims, bool) {
	claims, ok := r.Context().Value(UserContextKey).(auth.Claims)
	return claims, ok
}
