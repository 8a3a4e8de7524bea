package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat_backend/internal/service"
	"chat_backend/pkg/logger"
)

const aliasKey = "alias"

type AuthMiddleware struct {
	authService service.AuthService
	log         logger.Logger
}

func NewAuthMiddleware(authService service.AuthService, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		log:         log,
	}
}

// RequireAuth accepts "Authorization: Bearer <token>" or, for WebSocket
// upgrades that cannot set headers, a token query parameter.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		user, err := m.authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			m.log.Debug("Rejected token", "error", err, "path", c.FullPath())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(aliasKey, user.Alias)
		c.Next()
	}
}

// Alias returns the authenticated alias set by RequireAuth.
func Alias(c *gin.Context) (string, bool) {
	alias := c.GetString(aliasKey)
	return alias, alias != ""
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}
