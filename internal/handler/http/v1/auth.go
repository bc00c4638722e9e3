package v1

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/shenikar/sos_dispatch/internal/auth"
	"github.com/shenikar/sos_dispatch/internal/config"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

const identityKey = "identity"

// TokenVerifier проверяет токен личности
type TokenVerifier interface {
	Verify(token string) (models.Identity, error)
}

// APIKeyAuthMiddleware - middleware для аутентификации по API-ключу (административные маршруты)
func APIKeyAuthMiddleware(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	entry := log.WithField("middleware", "api_key")
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			// Проверяем также заголовок Authorization: Bearer
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			respondError(c, entry, apperror.Auth(apperror.CodeNoToken, "API key required"))
			return
		}

		isValid := false
		for _, key := range cfg.APIKeys {
			if key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
				isValid = true
				break
			}
		}

		if !isValid {
			respondError(c, entry, apperror.Auth(apperror.CodeInvalidToken, "Invalid API key"))
			return
		}

		c.Next()
	}
}

// AuthMiddleware проверяет Bearer JWT и кладет личность в контекст запроса
func AuthMiddleware(verifier TokenVerifier, log *logrus.Logger) gin.HandlerFunc {
	entry := log.WithField("middleware", "jwt")
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			respondError(c, entry, apperror.Auth(apperror.CodeNoToken, "Authentication token required"))
			return
		}
		token, err := auth.BearerToken(header)
		if err != nil {
			respondError(c, entry, apperror.Auth(apperror.CodeInvalidToken, "Invalid or expired token"))
			return
		}
		identity, err := verifier.Verify(token)
		if err != nil {
			respondError(c, entry, err)
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// identityFrom возвращает личность, установленную AuthMiddleware
func identityFrom(c *gin.Context) models.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(models.Identity); ok {
			return id
		}
	}
	return models.Identity{}
}
