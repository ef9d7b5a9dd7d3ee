package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Claims — личность, зашитая в bearer-токен. Тот же формат использует
// REST API и рукопожатие WebSocket.
// Claims is the identity embedded in a bearer token. Shared by the REST
// API and the WebSocket handshake.
type Claims struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"isAdmin"`
	ExpiresAt int64  `json:"exp,omitempty"` // unix-секунды; 0 — без срока
}

var (
	ErrInvalidToken = fmt.Errorf("невалидный токен")
	ErrTokenExpired = fmt.Errorf("срок действия токена истек")
)

// SignToken подписывает claims секретом: base64url(JSON) + "." +
// hex(HMAC-SHA256). Выпуск токенов живет в слое аутентификации сайта,
// здесь функция нужна боту и тестам.
func SignToken(claims Claims, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("секрет подписи не установлен")
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации claims: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + signature(encoded, secret), nil
}

// VerifyToken проверяет подпись и срок действия токена.
func VerifyToken(token, secret string) (Claims, error) {
	var claims Claims
	if secret == "" {
		return claims, fmt.Errorf("секрет подписи не установлен")
	}
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return claims, ErrInvalidToken
	}
	expected := signature(parts[0], secret)
	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return claims, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return claims, ErrInvalidToken
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return claims, ErrInvalidToken
	}
	if claims.ExpiresAt != 0 && time.Now().Unix() > claims.ExpiresAt {
		return Claims{}, ErrTokenExpired
	}
	return claims, nil
}

func signature(payload, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
