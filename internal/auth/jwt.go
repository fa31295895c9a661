// jwt.go — стратегия JWT bearer (HMAC-SHA256, registered claims).
// Токен приходит в Authorization: Bearer или в query-параметре token
// (нужно для WebSocket, где заголовки не всегда доступны).
package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTResolver проверяет HMAC-подписанные токены.
type JWTResolver struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTResolver создаёт стратегию JWT.
func NewJWTResolver(secret string, ttl time.Duration) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), ttl: ttl}
}

// Resolve реализует Resolver. Subject claim — Telegram user ID,
// роль — в claim "role" (по умолчанию member).
func (j *JWTResolver) Resolve(r *http.Request) (Subject, error) {
	tokenString := ""
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
	}
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	if tokenString == "" {
		return Subject{}, ErrNoCredentials
	}

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil || !token.Valid {
		return Subject{}, fmt.Errorf("токен не прошёл проверку: %w", err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Subject{}, fmt.Errorf("некорректный subject в токене: %w", err)
	}

	role := claims.Role
	if role == "" {
		role = RoleMember
	}
	return Subject{ID: userID, Role: role}, nil
}

// Issue выпускает токен для субъекта.
func (j *JWTResolver) Issue(subject Subject) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subject.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
		Role: subject.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}
