// Package auth проверяет токены личности для REST и real-time канала.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/shenikar/sos_dispatch/internal/models"
)

// Claims - полезная нагрузка токена
type Claims struct {
	UserID string      `json:"userId"`
	Phone  string      `json:"phone,omitempty"`
	Role   models.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier проверяет HS256 токены общим секретом
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verify разбирает токен и возвращает личность. Без роли пользователь считается гражданским.
func (v *Verifier) Verify(token string) (models.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Identity{}, apperror.Auth(apperror.CodeNoToken, "Authentication token required")
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return models.Identity{}, &apperror.Error{
			Kind:    apperror.KindAuth,
			Code:    apperror.CodeInvalidToken,
			Message: "Invalid or expired token",
			Err:     err,
		}
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return models.Identity{}, apperror.Auth(apperror.CodeInvalidToken, "Token has no user id")
	}

	role := claims.Role
	if role == "" {
		role = models.RoleCivilian
	}
	if !role.Valid() {
		return models.Identity{}, apperror.Auth(apperror.CodeInvalidToken, fmt.Sprintf("Unknown role %q", role))
	}
	return models.Identity{UserID: claims.UserID, Role: role}, nil
}

// BearerToken извлекает токен из заголовка Authorization
func BearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("authorization header must use Bearer scheme")
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}

// Issue подписывает токен для пользователя; используется тестами и служебными утилитами
func (v *Verifier) Issue(identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: identity.UserID,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
